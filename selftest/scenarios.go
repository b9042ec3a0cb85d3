package selftest

import (
	"fmt"
	"math"
	"strings"

	"github.com/wippyai/cffi"
)

// scenarios mirror the C demo program, one check per printed line.
func scenarios() []check {
	return []check{
		{"add(5, 3)", func(c *checker) error {
			return c.expect("add", []any{int32(5), int32(3)}, int32(8))
		}},
		{"multiply(6, 7)", func(c *checker) error {
			return c.expect("multiply", []any{int32(6), int32(7)}, int32(42))
		}},
		{"divide(10, 2)", func(c *checker) error {
			return c.expect("divide", []any{10.0, 2.0},
				cffi.OperationResult{Success: true, Value: 5, ErrorCode: cffi.Success})
		}},
		{"divide(10, 0)", func(c *checker) error {
			return c.expect("divide", []any{10.0, 0.0},
				cffi.OperationResult{ErrorCode: cffi.DivisionByZero})
		}},
		{"greet(Alice)", func(c *checker) error {
			out, err := c.call("greet", "Alice")
			if err != nil {
				return err
			}
			s, ok := out[0].(string)
			if !ok || !strings.Contains(s, "Alice") {
				return fmt.Errorf("greet(Alice) = %s", format(out))
			}
			return nil
		}},
		{"to_uppercase(hello world)", func(c *checker) error {
			return c.expect("to_uppercase", []any{"hello world"}, "HELLO WORLD")
		}},
		{"string_length(Rust)", func(c *checker) error {
			return c.expect("string_length", []any{"Rust"}, int32(4))
		}},
		{"sum_array([1..5])", func(c *checker) error {
			return c.expect("sum_array", []any{[]int32{1, 2, 3, 4, 5}}, int32(15))
		}},
		{"max_array([1..5])", func(c *checker) error {
			return c.expect("max_array", []any{[]int32{1, 2, 3, 4, 5}}, int32(5))
		}},
		{"sort_array([5, 2, 8, 1, 9])", func(c *checker) error {
			return c.expect("sort_array", []any{[]int32{5, 2, 8, 1, 9}}, []int32{1, 2, 5, 8, 9})
		}},
		{"point_distance((0, 0), (3, 4))", func(c *checker) error {
			return c.expectFloat("point_distance", []any{cffi.Point{}, cffi.Point{X: 3, Y: 4}}, 5)
		}},
		{"point_midpoint((0, 0), (3, 4))", func(c *checker) error {
			return c.expect("point_midpoint", []any{cffi.Point{}, cffi.Point{X: 3, Y: 4}}, cffi.Point{X: 1.5, Y: 2})
		}},
		{"point_translate((10, 20), 5, -3)", func(c *checker) error {
			return c.expect("point_translate", []any{cffi.Point{X: 10, Y: 20}, 5.0, -3.0}, cffi.Point{X: 15, Y: 17})
		}},
		{"parse_int(42)", func(c *checker) error {
			return c.expect("parse_int", []any{"42"}, cffi.Success, int32(42))
		}},
		{"parse_int(not a number)", func(c *checker) error {
			return c.expect("parse_int", []any{"not a number"}, cffi.ParseError, int32(0))
		}},
		{"copy_string(Hello, C!, 50)", func(c *checker) error {
			return c.expect("copy_string", []any{"Hello, C!", uint32(50)}, cffi.Success, "Hello, C!")
		}},
		{"copy_string(This is too long, 5)", func(c *checker) error {
			return c.expect("copy_string", []any{"This is too long", uint32(5)}, cffi.BufferTooSmall, "")
		}},
	}
}

func (c *checker) expectFloat(name string, args []any, want float64) error {
	out, err := c.call(name, args...)
	if err != nil {
		return err
	}
	got, ok := out[0].(float64)
	if !ok || !approx(got, want) {
		return fmt.Errorf("%s(%s) = %s, want %g", name, format(args), format(out), want)
	}
	return nil
}

// approx compares with a relative tolerance for large magnitudes and an
// absolute one near zero.
func approx(a, b float64) bool {
	const eps = 1e-9
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
