package selftest

import (
	"fmt"
	"math"
	"slices"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/abi"
)

const alphabet = "abcxyz ABC019-_!äöüßéçñ日本語"

func (c *checker) i32() int32 {
	return int32(c.rng.Uint32())
}

func (c *checker) f64() float64 {
	return (c.rng.Float64() - 0.5) * 2e6
}

func (c *checker) point() cffi.Point {
	return cffi.Point{X: c.f64(), Y: c.f64()}
}

func (c *checker) ints() []int32 {
	xs := make([]int32, c.rng.IntN(32))
	for i := range xs {
		xs[i] = int32(c.rng.IntN(200) - 100)
	}
	return xs
}

func (c *checker) text() string {
	runes := []rune(alphabet)
	out := make([]rune, c.rng.IntN(24))
	for i := range out {
		out[i] = runes[c.rng.IntN(len(runes))]
	}
	return string(out)
}

// repeat runs fn for every iteration and stops at the first failure.
func (c *checker) repeat(fn func() error) error {
	for i := 0; i < c.n; i++ {
		if err := fn(); err != nil {
			return fmt.Errorf("case %d: %w", i, err)
		}
	}
	return nil
}

func (c *checker) value(name string, args ...any) (any, error) {
	out, err := c.call(name, args...)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func properties() []check {
	return []check{
		{"add is commutative", func(c *checker) error {
			return c.repeat(func() error { return c.commutes("add") })
		}},
		{"multiply is commutative", func(c *checker) error {
			return c.repeat(func() error { return c.commutes("multiply") })
		}},
		{"divide matches a/b", func(c *checker) error {
			return c.repeat(func() error {
				a, b := c.f64(), c.f64()
				if b == 0 {
					return nil
				}
				return c.expect("divide", []any{a, b}, cffi.OperationResult{Success: true, Value: a / b})
			})
		}},
		{"divide by signed zero fails", func(c *checker) error {
			for _, zero := range []float64{0, math.Copysign(0, -1)} {
				err := c.expect("divide", []any{c.f64(), zero}, cffi.OperationResult{ErrorCode: cffi.DivisionByZero})
				if err != nil {
					return err
				}
			}
			return nil
		}},
		{"to_uppercase is idempotent", func(c *checker) error {
			return c.repeat(func() error {
				once, err := c.value("to_uppercase", c.text())
				if err != nil {
					return err
				}
				s, ok := once.(string)
				if !ok {
					return fmt.Errorf("to_uppercase returned %s", format([]any{once}))
				}
				return c.expect("to_uppercase", []any{s}, s)
			})
		}},
		{"string_length counts bytes", func(c *checker) error {
			if err := c.expect("string_length", []any{""}, int32(0)); err != nil {
				return err
			}
			return c.repeat(func() error {
				s := c.text()
				return c.expect("string_length", []any{s}, int32(len(s)))
			})
		}},
		{"null pointers yield sentinels", func(c *checker) error {
			return c.nullSentinels()
		}},
		{"sum and max of empty arrays", func(c *checker) error {
			if err := c.expect("sum_array", []any{[]int32{}}, int32(0)); err != nil {
				return err
			}
			return c.expect("max_array", []any{[]int32{}}, int32(math.MinInt32))
		}},
		{"sort is an idempotent ordered permutation", func(c *checker) error {
			return c.repeat(func() error {
				xs := c.ints()
				want := slices.Clone(xs)
				slices.Sort(want)
				if err := c.expect("sort_array", []any{xs}, want); err != nil {
					return err
				}
				return c.expect("sort_array", []any{want}, want)
			})
		}},
		{"sum and max agree with Go", func(c *checker) error {
			return c.repeat(func() error {
				xs := c.ints()
				var sum int32
				for _, x := range xs {
					sum += x
				}
				if err := c.expect("sum_array", []any{xs}, sum); err != nil {
					return err
				}
				want := int32(math.MinInt32)
				if len(xs) > 0 {
					want = slices.Max(xs)
				}
				return c.expect("max_array", []any{xs}, want)
			})
		}},
		{"distance is zero to itself and symmetric", func(c *checker) error {
			return c.repeat(func() error {
				p, q := c.point(), c.point()
				if err := c.expect("point_distance", []any{p, p}, 0.0); err != nil {
					return err
				}
				pq, err := c.value("point_distance", p, q)
				if err != nil {
					return err
				}
				return c.expect("point_distance", []any{q, p}, pq)
			})
		}},
		{"midpoint is equidistant", func(c *checker) error {
			return c.repeat(func() error {
				p, q := c.point(), c.point()
				m, err := c.value("point_midpoint", p, q)
				if err != nil {
					return err
				}
				dp, err := c.value("point_distance", m, p)
				if err != nil {
					return err
				}
				dq, err := c.value("point_distance", m, q)
				if err != nil {
					return err
				}
				if !approx(dp.(float64), dq.(float64)) {
					return fmt.Errorf("midpoint %s: distances %g and %g", m, dp, dq)
				}
				return nil
			})
		}},
		{"copy_string into len bytes writes nothing", func(c *checker) error {
			return c.repeat(c.copyWithoutRoom)
		}},
	}
}

func (c *checker) commutes(name string) error {
	a, b := c.i32(), c.i32()
	ab, err := c.value(name, a, b)
	if err != nil {
		return err
	}
	return c.expect(name, []any{b, a}, ab)
}

// nullSentinels calls the lowered exports directly with null pointers, which
// Invoke never produces.
func (c *checker) nullSentinels() error {
	tests := []struct {
		name   string
		params []uint64
		want   uint64
	}{
		{"greet", []uint64{0}, api.EncodeU32(cffi.Null)},
		{"to_uppercase", []uint64{0}, api.EncodeU32(cffi.Null)},
		{"string_length", []uint64{0}, api.EncodeI32(-1)},
		{"sum_array", []uint64{0, 4}, api.EncodeI32(0)},
		{"max_array", []uint64{0, 4}, api.EncodeI32(math.MinInt32)},
		{"parse_int", []uint64{0, 0}, api.EncodeI32(int32(cffi.NullPointer))},
		{"copy_string", []uint64{0, 0, 8}, api.EncodeI32(int32(cffi.NullPointer))},
	}
	for _, tt := range tests {
		res, err := c.target.Call(c.ctx, tt.name, tt.params...)
		if err != nil {
			return fmt.Errorf("%s(NULL): %w", tt.name, err)
		}
		if len(res) != 1 || uint32(res[0]) != uint32(tt.want) {
			return fmt.Errorf("%s(NULL) = %v, want %d", tt.name, res, int32(tt.want))
		}
	}
	for _, name := range []string{"free_string", "free_rust_string", "sort_array", "point_translate"} {
		e, ok := abi.Lookup(name)
		if !ok {
			return fmt.Errorf("%s is not exported", name)
		}
		if _, err := c.target.Call(c.ctx, name, make([]uint64, len(e.WasmParams()))...); err != nil {
			return fmt.Errorf("%s(NULL): %w", name, err)
		}
	}
	return nil
}

// copyWithoutRoom copies a string into exactly len(s) bytes, one short of
// the terminator, and checks the destination is untouched.
func (c *checker) copyWithoutRoom() error {
	s := c.text()
	size := uint32(len(s))

	src, err := c.target.Alloc(c.ctx, size+1, 1)
	if err != nil {
		return err
	}
	defer c.target.Free(c.ctx, src, size+1, 1)
	dest, err := c.target.Alloc(c.ctx, max(size, 1), 1)
	if err != nil {
		return err
	}
	defer c.target.Free(c.ctx, dest, max(size, 1), 1)

	mem := c.target.Memory()
	if err := mem.Write(src, append([]byte(s), 0)); err != nil {
		return err
	}
	fill := make([]byte, max(size, 1))
	for i := range fill {
		fill[i] = 0xa5
	}
	if err := mem.Write(dest, fill); err != nil {
		return err
	}

	res, err := c.target.Call(c.ctx, "copy_string", api.EncodeU32(src), api.EncodeU32(dest), api.EncodeU32(size))
	if err != nil {
		return err
	}
	if code := cffi.ErrorCode(api.DecodeI32(res[0])); code != cffi.BufferTooSmall {
		return fmt.Errorf("copy_string(%q, %d) = %s, want BufferTooSmall", s, size, code)
	}
	after, err := mem.Read(dest, max(size, 1))
	if err != nil {
		return err
	}
	for i, b := range after {
		if b != 0xa5 {
			return fmt.Errorf("copy_string(%q, %d) wrote byte %d", s, size, i)
		}
	}
	return nil
}
