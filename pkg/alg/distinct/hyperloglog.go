package distinct

import (
	"fmt"
	"math/bits"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/packedarray"
)

const (
	// hllRegisterBits is the width of one HyperLogLog register.
	hllRegisterBits = 6

	// hllMinStateSize is the state length in bytes at MinP.
	hllMinStateSize = 3 << (MinP - 2)

	// hllMaxStateSize is the state length in bytes at MaxP.
	hllMaxStateSize = 3 << (MaxP - 2)
)

var hllRegisters = packedarray.MustNew(hllRegisterBits)

// HyperLogLog is a distinct-count sketch with 2^p registers of 6 bits each.
//
// Register i holds 1 + the maximum number of leading zeros observed in the
// lower 64-p bits of all hashes whose upper p bits equal i, or 0 if no such
// hash was added.
type HyperLogLog struct {
	state []byte
	p     int
}

// NewHyperLogLog returns an empty sketch with precision p.
func NewHyperLogLog(p int) (*HyperLogLog, error) {
	err := checkPrecision(p)
	if err != nil {
		return nil, err
	}

	return newHyperLogLog(p), nil
}

func newHyperLogLog(p int) *HyperLogLog {
	return &HyperLogLog{
		state: hllRegisters.Create(1 << p),
		p:     p,
	}
}

// WrapHyperLogLog returns a sketch backed by state, which is not copied.
// The length of state must be 3*2^(p-2) for some precision p in [3, 26].
func WrapHyperLogLog(state []byte) (*HyperLogLog, error) {
	if state == nil {
		return nil, ErrNilArgument
	}

	p, ok := hllPrecision(len(state))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStateLength, len(state))
	}

	return &HyperLogLog{state: state, p: p}, nil
}

// HyperLogLogStateSize returns the state length in bytes for precision p.
func HyperLogLogStateSize(p int) int {
	return hllRegisters.NumBytes(1 << p)
}

// hllPrecision derives the precision from a state length.
func hllPrecision(length int) (int, bool) {
	if length < hllMinStateSize || length > hllMaxStateSize || length%3 != 0 {
		return 0, false
	}

	m := length / 3 << 2
	if m&(m-1) != 0 {
		return 0, false
	}

	return bits.TrailingZeros(uint(m)), true
}

// MergeHyperLogLogs returns a new sketch representing the union of both
// arguments, with the smaller of both precisions.
func MergeHyperLogLogs(a, b *HyperLogLog) (*HyperLogLog, error) {
	if a == nil || b == nil {
		return nil, ErrNilArgument
	}

	if a.p > b.p {
		a, b = b, a
	}

	merged := a.Clone()

	err := merged.Merge(b)
	if err != nil {
		return nil, err
	}

	return merged, nil
}

// Clone returns a deep copy.
func (s *HyperLogLog) Clone() *HyperLogLog {
	return &HyperLogLog{
		state: append([]byte(nil), s.state...),
		p:     s.p,
	}
}

// Downsize returns a copy with precision min(p, s.Precision()).
func (s *HyperLogLog) Downsize(p int) (*HyperLogLog, error) {
	err := checkPrecision(p)
	if err != nil {
		return nil, err
	}

	if p >= s.p {
		return s.Clone(), nil
	}

	downsized := newHyperLogLog(p)
	downsized.merge(s)

	return downsized, nil
}

// State returns the register buffer. It is not a copy.
func (s *HyperLogLog) State() []byte {
	return s.state
}

// Precision returns the precision parameter p.
func (s *HyperLogLog) Precision() int {
	return s.p
}

// Add inserts an element given by its 64-bit hash.
func (s *HyperLogLog) Add(hash uint64) {
	s.add(hash, nil)
}

// AddWithObserver inserts an element and, if a register changed, notifies
// observer with the resulting drop of the state change probability.
// A nil observer is not notified.
func (s *HyperLogLog) AddWithObserver(hash uint64, observer StateChangeObserver) {
	s.add(hash, observer)
}

// AddToken inserts an element given by a token from ComputeToken.
func (s *HyperLogLog) AddToken(token uint32) {
	s.add(ReconstructHash(token), nil)
}

// AddTokenWithObserver inserts a token and notifies observer like AddWithObserver.
func (s *HyperLogLog) AddTokenWithObserver(token uint32, observer StateChangeObserver) {
	s.add(ReconstructHash(token), observer)
}

func (s *HyperLogLog) add(hash uint64, observer StateChangeObserver) {
	idx := int(hash >> (hashBits - s.p))
	// nlz is in [0, 64-p].
	nlz := uint64(bits.LeadingZeros64(^(^hash << s.p)))
	r := nlz + 1

	prev := hllRegisters.Update(s.state, idx, r, packedarray.Max)
	if observer != nil && prev < r {
		observer.StateChanged(hllRegisterChangeProbability(prev, s.p) - hllRegisterChangeProbability(r, s.p))
	}
}

// Merge adds all elements represented by other to s. The precision of other
// must not be smaller than that of s; otherwise ErrIncompatiblePrecision is
// returned and s is left unchanged.
func (s *HyperLogLog) Merge(other *HyperLogLog) error {
	if other == nil {
		return ErrNilArgument
	}

	if other.p < s.p {
		return fmt.Errorf("%w: %d < %d", ErrIncompatiblePrecision, other.p, s.p)
	}

	s.merge(other)

	return nil
}

// merge folds the 2^deltaP registers of other that map onto each register of
// s. The first of them shares its lower index bits with hashes whose extra
// deltaP bits are all zero, so its value grows by deltaP. For any other
// sub-register k the extra bits themselves contain the first one-bit, and
// only the fact that it is nonzero matters.
func (s *HyperLogLog) merge(other *HyperLogLog) {
	deltaP := other.p - s.p
	m := 1 << s.p
	j := 0

	for i := range m {
		prev := hllRegisters.Get(s.state, i)
		r := prev

		if otherR := hllRegisters.Get(other.state, j); otherR != 0 {
			r = max(r, otherR+uint64(deltaP))
		}

		j++

		for k := uint64(1); k < 1<<deltaP; k++ {
			nlz := uint64(bits.LeadingZeros64(k) - hashBits + deltaP)
			if nlz >= r && hllRegisters.Get(other.state, j) != 0 {
				r = nlz + 1
			}

			j++
		}

		if prev < r {
			hllRegisters.Set(s.state, i, r)
		}
	}
}

// Reset clears all registers.
func (s *HyperLogLog) Reset() {
	hllRegisters.Clear(s.state)
}

// StateChangeProbability returns the probability that adding a new distinct
// element changes a register. It is 1 for an empty sketch and 0 once every
// register is saturated.
func (s *HyperLogLog) StateChangeProbability() float64 {
	sum := 0.0

	for _, r := range hllRegisters.All(s.state, 1<<s.p) {
		sum += hllRegisterChangeProbability(r, s.p)
	}

	return sum
}

// hllRegisterChangeProbability returns 2^-(r+p), the probability that a
// random hash lands in a given register and raises its value r.
func hllRegisterChangeProbability(r uint64, p int) float64 {
	if r > uint64(hashBits-p) {
		return 0
	}

	return pow2Neg(int(r) + p)
}

// Estimate returns the distinct count estimate of the default estimator,
// HLLSmallRangeCorrectedRaw.
func (s *HyperLogLog) Estimate() float64 {
	return HLLSmallRangeCorrectedRaw.Estimate(s)
}

// EstimateWith returns the distinct count estimate of the given estimator.
func (s *HyperLogLog) EstimateWith(estimator HyperLogLogEstimator) float64 {
	return estimator.Estimate(s)
}
