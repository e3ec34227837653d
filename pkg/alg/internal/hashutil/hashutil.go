// Package hashutil provides the 64-bit hashing used to feed distinct-count
// sketches and the deterministic pseudo-random streams used by their tests
// and benchmarks.
//
// Byte and string keys are hashed with XXH64, whose output is uniformly
// distributed over all 64 bits as the sketches require. Integer keys are
// scrambled with the splitmix64 finalizer by Vigna (2014).
package hashutil

import "github.com/cespare/xxhash/v2"

// Splitmix64 constants from the splitmix64 finalizer by Vigna (2014).
const (
	// MixShift1 is the first right-shift in the splitmix64 finalizer.
	MixShift1 = 30

	// MixMul1 is the first multiplier in the splitmix64 finalizer.
	MixMul1 = 0xbf58476d1ce4e5b9

	// MixShift2 is the second right-shift in the splitmix64 finalizer.
	MixShift2 = 27

	// MixMul2 is the second multiplier in the splitmix64 finalizer.
	MixMul2 = 0x94d049bb133111eb

	// MixShift3 is the third right-shift in the splitmix64 finalizer.
	MixShift3 = 31

	// splitmix64Increment is the golden-ratio-derived increment
	// used in the Splitmix64 state-advance function.
	splitmix64Increment = 0x9e3779b97f4a7c15
)

// Sum64 hashes data with XXH64.
func Sum64(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// SumString hashes s with XXH64 without copying it.
func SumString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Mix64 applies the splitmix64 finalizer for full-avalanche mixing.
// It is a bijection on uint64, so distinct integer keys stay distinct.
func Mix64(v uint64) uint64 {
	v ^= v >> MixShift1
	v *= MixMul1
	v ^= v >> MixShift2
	v *= MixMul2
	v ^= v >> MixShift3

	return v
}

// Splitmix64 advances the state by the golden-ratio increment and applies
// the mix64 finalizer.
func Splitmix64(state uint64) uint64 {
	return Mix64(state + splitmix64Increment)
}

// Stream is a splitmix64 pseudo-random generator. The zero value is a valid
// stream seeded with 0. It is not safe for concurrent use.
type Stream struct {
	state uint64
}

// NewStream returns a stream starting at seed.
func NewStream(seed uint64) *Stream {
	return &Stream{state: seed}
}

// Next returns the next pseudo-random 64-bit value.
func (s *Stream) Next() uint64 {
	s.state += splitmix64Increment

	return Mix64(s.state)
}
