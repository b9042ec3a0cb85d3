package ops

import (
	"slices"

	"github.com/wippyai/cffi/errors"
)

// Sum returns the wrapping sum of xs. An empty slice sums to 0.
func Sum(xs []int32) int32 {
	var total int32
	for _, x := range xs {
		total += x
	}
	return total
}

// Max returns the largest element of xs.
func Max(xs []int32) (int32, error) {
	if len(xs) == 0 {
		return 0, errors.EmptyInput(errors.PhaseOp, "max_array")
	}
	return slices.Max(xs), nil
}

// Sort sorts xs ascending in place. The sort is not stable, which is
// unobservable for plain integers.
func Sort(xs []int32) {
	slices.Sort(xs)
}
