package ops

import (
	stderrors "errors"
	"strconv"

	"github.com/wippyai/cffi/errors"
)

// ParseInt parses a base-10 signed 32-bit integer with an optional sign.
// Whitespace, underscores and base prefixes are rejected.
func ParseInt(input []byte) (int32, error) {
	s, err := Text("parse_int", input)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		if stderrors.Is(err, strconv.ErrRange) {
			return 0, errors.Overflow(errors.PhaseOp, "parse_int", s, "s32")
		}
		return 0, errors.ParseFailed(errors.PhaseOp, "parse_int", s, err)
	}
	return int32(v), nil
}
