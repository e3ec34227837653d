package distinct_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/internal/hashutil"
)

// variant bundles the constructors and type-specific operations of one
// sketch type so that shared properties are tested against both.
type variant struct {
	name       string
	create     func(p int) (distinct.Counter, error)
	wrap       func(state []byte) (distinct.Counter, error)
	merge      func(dst, src distinct.Counter) error
	downsize   func(s distinct.Counter, p int) (distinct.Counter, error)
	clone      func(s distinct.Counter) distinct.Counter
	stateSize  func(p int) int
	rse        func(p int) float64
	mlRSE      func(p int) float64
	mlEstimate func(s distinct.Counter) float64
}

var variants = []variant{
	{
		name: "hyperloglog",
		create: func(p int) (distinct.Counter, error) {
			return distinct.NewHyperLogLog(p)
		},
		wrap: func(state []byte) (distinct.Counter, error) {
			return distinct.WrapHyperLogLog(state)
		},
		merge: func(dst, src distinct.Counter) error {
			return dst.(*distinct.HyperLogLog).Merge(src.(*distinct.HyperLogLog))
		},
		downsize: func(s distinct.Counter, p int) (distinct.Counter, error) {
			return s.(*distinct.HyperLogLog).Downsize(p)
		},
		clone: func(s distinct.Counter) distinct.Counter {
			return s.(*distinct.HyperLogLog).Clone()
		},
		stateSize: distinct.HyperLogLogStateSize,
		rse:       distinct.HyperLogLogRelativeStandardError,
		mlRSE:     distinct.HyperLogLogMLRelativeStandardError,
		mlEstimate: func(s distinct.Counter) float64 {
			return s.(*distinct.HyperLogLog).EstimateWith(distinct.HLLMaximumLikelihood)
		},
	},
	{
		name: "ultraloglog",
		create: func(p int) (distinct.Counter, error) {
			return distinct.NewUltraLogLog(p)
		},
		wrap: func(state []byte) (distinct.Counter, error) {
			return distinct.WrapUltraLogLog(state)
		},
		merge: func(dst, src distinct.Counter) error {
			return dst.(*distinct.UltraLogLog).Merge(src.(*distinct.UltraLogLog))
		},
		downsize: func(s distinct.Counter, p int) (distinct.Counter, error) {
			return s.(*distinct.UltraLogLog).Downsize(p)
		},
		clone: func(s distinct.Counter) distinct.Counter {
			return s.(*distinct.UltraLogLog).Clone()
		},
		stateSize: distinct.UltraLogLogStateSize,
		rse:       distinct.UltraLogLogRelativeStandardError,
		mlRSE:     distinct.UltraLogLogMLRelativeStandardError,
		mlEstimate: func(s distinct.Counter) float64 {
			return s.(*distinct.UltraLogLog).EstimateWith(distinct.ULLMaximumLikelihood)
		},
	},
}

// updateValue returns a hash that is routed to register idx of a sketch with
// precision p and has exactly nlz leading zeros in its lower 64-p bits.
// The remaining bits are taken from rnd.
func updateValue(p int, idx uint64, nlz int, rnd uint64) uint64 {
	return idx<<(64-p) | (rnd|1<<63)>>p>>nlz
}

func mustCreate(t *testing.T, v variant, p int) distinct.Counter {
	t.Helper()

	s, err := v.create(p)
	require.NoError(t, err)

	return s
}

// randomHashes returns n pseudo-random hash values from the given seed.
func randomHashes(seed uint64, n int) []uint64 {
	stream := hashutil.NewStream(seed)
	hashes := make([]uint64, n)

	for i := range hashes {
		hashes[i] = stream.Next()
	}

	return hashes
}

// recordingObserver sums the reported probability decrements.
type recordingObserver struct {
	calls int
	total float64
}

func (o *recordingObserver) StateChanged(probabilityDecrement float64) {
	o.calls++
	o.total += probabilityDecrement
}
