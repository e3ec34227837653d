// Package safeconv provides checked integer conversions for values that cross
// the configuration and command line boundaries.
package safeconv

import (
	"errors"
	"fmt"
	"math"
)

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// ErrOutOfRange is returned when a value does not fit the target type.
var ErrOutOfRange = errors.New("safeconv: value out of range")

// IntToUint8 converts v to uint8, failing when v is outside [0, 255].
func IntToUint8(v int) (uint8, error) {
	if v < 0 || v > math.MaxUint8 {
		return 0, fmt.Errorf("%w: %d does not fit uint8", ErrOutOfRange, v)
	}

	return uint8(v), nil
}

// MustIntToUint8 converts int to uint8, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint8(v int) uint8 {
	u, err := IntToUint8(v)
	if err != nil {
		panic("safeconv: int to uint8 out of bounds")
	}

	return u
}

// MustIntToUint converts int to uint, panics if negative.
// Use only when negative values are logically impossible.
func MustIntToUint(v int) uint {
	if v < 0 {
		panic("safeconv: negative int to uint conversion")
	}

	return uint(v)
}

// ClampUint64ToInt converts uint64 to int, clamping to MaxInt.
func ClampUint64ToInt(v uint64) int {
	if v > uint64(MaxInt) {
		return MaxInt
	}

	return int(v)
}
