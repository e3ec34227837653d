package distinct

import (
	"fmt"
	"math/bits"
)

const (
	// ullMinStateSize is the state length in bytes at MinP.
	ullMinStateSize = 1 << MinP

	// ullMaxStateSize is the state length in bytes at MaxP.
	ullMaxStateSize = 1 << MaxP

	// ullSaturatedLevel is the register exponent reached once a hash with
	// all 64-p lower bits zero was added.
	ullSaturatedLevel = hashBits - 1
)

// ullSaturatedChangeFactors holds, indexed by the two lower bits of a
// saturated register, the chance of a change in units of 2^-64. Only the
// levels 62 and 61 can still be set, with weights 1 and 2.
var ullSaturatedChangeFactors = [4]float64{3, 1, 2, 0}

// UltraLogLog is a distinct-count sketch with 2^p one-byte registers.
//
// A register stores the highest level u of all hashes routed to it as u<<2,
// together with two flags telling whether the levels u-1 and u-2 were also
// observed. The level of a hash is its number of leading zeros in the lower
// 64-p bits plus p-1, so every nonzero register is at least 4(p-1).
type UltraLogLog struct {
	state []byte
}

// NewUltraLogLog returns an empty sketch with precision p.
func NewUltraLogLog(p int) (*UltraLogLog, error) {
	err := checkPrecision(p)
	if err != nil {
		return nil, err
	}

	return newUltraLogLog(p), nil
}

func newUltraLogLog(p int) *UltraLogLog {
	return &UltraLogLog{state: make([]byte, 1<<p)}
}

// WrapUltraLogLog returns a sketch backed by state, which is not copied.
// The length of state must be a power of two in [2^3, 2^26].
func WrapUltraLogLog(state []byte) (*UltraLogLog, error) {
	if state == nil {
		return nil, ErrNilArgument
	}

	n := len(state)
	if n < ullMinStateSize || n > ullMaxStateSize || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStateLength, n)
	}

	return &UltraLogLog{state: state}, nil
}

// UltraLogLogStateSize returns the state length in bytes for precision p.
func UltraLogLogStateSize(p int) int {
	return 1 << p
}

// MergeUltraLogLogs returns a new sketch representing the union of both
// arguments, with the smaller of both precisions.
func MergeUltraLogLogs(a, b *UltraLogLog) (*UltraLogLog, error) {
	if a == nil || b == nil {
		return nil, ErrNilArgument
	}

	if len(a.state) > len(b.state) {
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
func (s *UltraLogLog) Clone() *UltraLogLog {
	return &UltraLogLog{state: append([]byte(nil), s.state...)}
}

// Downsize returns a copy with precision min(p, s.Precision()).
func (s *UltraLogLog) Downsize(p int) (*UltraLogLog, error) {
	err := checkPrecision(p)
	if err != nil {
		return nil, err
	}

	if p >= s.Precision() {
		return s.Clone(), nil
	}

	downsized := newUltraLogLog(p)
	downsized.merge(s)

	return downsized, nil
}

// State returns the register buffer. It is not a copy.
func (s *UltraLogLog) State() []byte {
	return s.state
}

// Precision returns the precision parameter p.
func (s *UltraLogLog) Precision() int {
	return bits.TrailingZeros(uint(len(s.state)))
}

// Add inserts an element given by its 64-bit hash.
func (s *UltraLogLog) Add(hash uint64) {
	s.add(hash, nil)
}

// AddWithObserver inserts an element and, if a register changed, notifies
// observer with the resulting drop of the state change probability.
// A nil observer is not notified.
func (s *UltraLogLog) AddWithObserver(hash uint64, observer StateChangeObserver) {
	s.add(hash, observer)
}

// AddToken inserts an element given by a token from ComputeToken.
func (s *UltraLogLog) AddToken(token uint32) {
	s.add(ReconstructHash(token), nil)
}

// AddTokenWithObserver inserts a token and notifies observer like AddWithObserver.
func (s *UltraLogLog) AddTokenWithObserver(token uint32, observer StateChangeObserver) {
	s.add(ReconstructHash(token), observer)
}

func (s *UltraLogLog) add(hash uint64, observer StateChangeObserver) {
	p := s.Precision()
	idx := hash >> (hashBits - p)
	// nlz is in [0, 64-p].
	nlz := bits.LeadingZeros64(^(^hash << p))

	prev := s.state[idx]
	next := pack(unpack(prev) | 1<<(nlz+p-1))

	if next == prev {
		return
	}

	s.state[idx] = next

	if observer != nil {
		observer.StateChanged(ullRegisterChangeProbability(prev, p) - ullRegisterChangeProbability(next, p))
	}
}

// Merge adds all elements represented by other to s. The precision of other
// must not be smaller than that of s; otherwise ErrIncompatiblePrecision is
// returned and s is left unchanged.
func (s *UltraLogLog) Merge(other *UltraLogLog) error {
	if other == nil {
		return ErrNilArgument
	}

	if len(other.state) < len(s.state) {
		return fmt.Errorf("%w: %d < %d", ErrIncompatiblePrecision, other.Precision(), s.Precision())
	}

	s.merge(other)

	return nil
}

// merge unions the level sets of the 2^deltaP registers of other that map
// onto each register of s. Levels observed in the first sub-register carry
// over unchanged. Any nonzero sub-register k proves a hash whose first
// one-bit lies within the extra deltaP index bits, which sets prefix bit
// otherP-2-floor(log2 k), written as nlz(k)+otherP-1-64 so the shift stays
// below 64.
func (s *UltraLogLog) merge(other *UltraLogLog) {
	otherP := other.Precision()
	deltaP := otherP - s.Precision()
	j := 0

	for i := range s.state {
		prefix := unpack(s.state[i]) | unpack(other.state[j])
		j++

		for k := uint64(1); k < 1<<deltaP; k++ {
			if other.state[j] != 0 {
				prefix |= 1 << (bits.LeadingZeros64(k) + otherP - 1 - hashBits)
			}

			j++
		}

		if prefix != 0 {
			s.state[i] = pack(prefix)
		}
	}
}

// Reset clears all registers.
func (s *UltraLogLog) Reset() {
	clear(s.state)
}

// StateChangeProbability returns the probability that adding a new distinct
// element changes a register. It is 1 for an empty sketch and 0 once every
// register holds 255.
func (s *UltraLogLog) StateChangeProbability() float64 {
	p := s.Precision()
	sum := 0.0

	for _, r := range s.state {
		sum += ullRegisterChangeProbability(r, p)
	}

	return sum
}

// Estimate returns the distinct count estimate of the default estimator,
// ULLOptimalFGRA.
func (s *UltraLogLog) Estimate() float64 {
	return ULLOptimalFGRA.Estimate(s)
}

// EstimateWith returns the distinct count estimate of the given estimator.
func (s *UltraLogLog) EstimateWith(estimator UltraLogLogEstimator) float64 {
	return estimator.Estimate(s)
}

// ullRegisterChangeProbability returns the probability that a random hash
// lands in a register with value r and changes it.
func ullRegisterChangeProbability(r byte, p int) float64 {
	if r>>2 == ullSaturatedLevel {
		return ullSaturatedChangeFactors[r&3] * pow2Neg(hashBits)
	}

	t := int(r) - (p+1)<<2
	if t >= 0 {
		var x float64

		switch t & 3 {
		case 0:
			x = 7. / 8.
		case 1:
			x = 3. / 8.
		case 2:
			x = 5. / 8.
		default:
			x = 1. / 8.
		}

		return scalePow2Neg(x, p+t>>2)
	}

	var x float64

	switch t {
	case -2:
		x = 1. / 4.
	case -4:
		x = 3. / 4.
	case -8:
		x = 1. / 2.
	default:
		x = 1
	}

	return scalePow2Neg(x, p)
}

// unpack expands a register into the set of observed levels, one bit per
// level. The result is only meaningful for registers produced by pack.
func unpack(r byte) uint64 {
	return uint64(4|r&3) << (uint(r>>2-2) & (hashBits - 1))
}

// pack compresses a nonzero level set into a register value: the highest
// level u and the flags of u-1 and u-2.
func pack(prefix uint64) byte {
	nlz := bits.LeadingZeros64(prefix) + 1

	return byte(-nlz<<2 | int(prefix<<nlz>>62))
}

// ullLevelCount is a register's highest level expressed as 1 + its number of
// leading zeros in the lower 64-p bits.
func ullLevelCount(r byte, p int) int {
	return int(r>>2) - p + 1
}
