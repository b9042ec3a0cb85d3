package ops

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/cffi/errors"
)

// Text validates borrowed bytes as UTF-8 and returns them as a string.
func Text(op string, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errors.InvalidUTF8(errors.PhaseOp, op, b)
	}
	return string(b), nil
}

// Greet returns the greeting for name.
func Greet(name []byte) (string, error) {
	s, err := Text("greet", name)
	if err != nil {
		return "", err
	}
	return "Hello, " + s + "! Welcome from Go.", nil
}

// ToUpper returns the Unicode uppercase form of input.
func ToUpper(input []byte) (string, error) {
	s, err := Text("to_uppercase", input)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(s), nil
}

// StringLength returns the UTF-8 byte length of input.
func StringLength(input []byte) (int32, error) {
	if !utf8.Valid(input) {
		return 0, errors.InvalidUTF8(errors.PhaseOp, "string_length", input)
	}
	if len(input) > math.MaxInt32 {
		return 0, errors.Overflow(errors.PhaseOp, "string_length", len(input), "s32")
	}
	return int32(len(input)), nil
}

// CopyString copies src plus a NUL terminator into dest. On failure dest is
// left untouched.
func CopyString(src, dest []byte) error {
	need := len(src) + 1
	if len(dest) == 0 {
		return errors.BufferTooSmall(errors.PhaseOp, "copy_string", need, 0)
	}
	if !utf8.Valid(src) {
		return errors.InvalidUTF8(errors.PhaseOp, "copy_string", src)
	}
	if need > len(dest) {
		return errors.BufferTooSmall(errors.PhaseOp, "copy_string", need, len(dest))
	}
	n := copy(dest, src)
	dest[n] = 0
	return nil
}
