// Package distinct provides mergeable cardinality-estimation sketches.
//
// Two register layouts are available. HyperLogLog keeps one 6-bit register per
// bucket holding the maximum observed leading-zero count. UltraLogLog keeps one
// byte per bucket that additionally records the two next-lower observed levels,
// which buys roughly 28% less variance at the same state size.
//
// Sketches consume 64-bit hash values that must be uniformly distributed.
// Neither sketch performs any locking; concurrent mutation of one sketch must
// be prevented by the caller. Estimators are pure and may run concurrently on
// sketches that are not being mutated.
//
// The register buffer returned by State is the complete serializable state of
// a sketch. Its length determines the precision, so Wrap functions can restore
// a sketch from the raw bytes alone.
package distinct

import (
	"errors"
	"fmt"
)

const (
	// MinP is the smallest supported precision (8 registers).
	MinP = 3

	// MaxP is the largest supported precision (2^26 registers).
	MaxP = 26

	// hashBits is the width of the hash values fed into the sketches.
	hashBits = 64
)

var (
	// ErrInvalidPrecision is returned when a precision is outside [MinP, MaxP].
	ErrInvalidPrecision = errors.New("distinct: precision must be in [3, 26]")

	// ErrInvalidStateLength is returned when a wrapped buffer does not have
	// the length of a valid state for any supported precision.
	ErrInvalidStateLength = errors.New("distinct: illegal state length")

	// ErrIncompatiblePrecision is returned when a sketch with a smaller
	// precision is merged into one with a larger precision.
	ErrIncompatiblePrecision = errors.New("distinct: other sketch has smaller precision")

	// ErrNilArgument is returned when a required sketch or buffer is nil.
	ErrNilArgument = errors.New("distinct: nil argument")

	// ErrUnknownEstimator is returned when an estimator name cannot be parsed.
	ErrUnknownEstimator = errors.New("distinct: unknown estimator")

	// ErrInvalidMartingaleState is returned when a martingale estimator is
	// set to a negative estimate or a probability outside [0, 1].
	ErrInvalidMartingaleState = errors.New("distinct: invalid martingale state")
)

// Counter is the surface shared by both sketch types.
type Counter interface {
	// Add inserts an element given by its 64-bit hash.
	Add(hash uint64)

	// AddWithObserver inserts an element and reports a register change to observer.
	AddWithObserver(hash uint64, observer StateChangeObserver)

	// AddToken inserts an element given by its 32-bit token.
	AddToken(token uint32)

	// AddTokenWithObserver inserts a token and reports a register change to observer.
	AddTokenWithObserver(token uint32, observer StateChangeObserver)

	// Estimate returns the distinct count estimate of the default estimator.
	Estimate() float64

	// StateChangeProbability returns the probability that inserting a new
	// distinct element changes the state.
	StateChangeProbability() float64

	// State returns the register buffer. It is not a copy.
	State() []byte

	// Precision returns the precision parameter p.
	Precision() int

	// Reset clears all registers.
	Reset()
}

// StateChangeObserver is notified whenever an insertion changes a register.
// The decrement is the amount by which the state change probability of the
// sketch dropped because of that change.
type StateChangeObserver interface {
	StateChanged(probabilityDecrement float64)
}

// ObserverFunc adapts a function to StateChangeObserver.
type ObserverFunc func(probabilityDecrement float64)

// StateChanged calls f.
func (f ObserverFunc) StateChanged(probabilityDecrement float64) {
	f(probabilityDecrement)
}

// ChainObservers returns an observer that forwards every notification to each
// non-nil observer in order.
func ChainObservers(observers ...StateChangeObserver) StateChangeObserver {
	chained := make([]StateChangeObserver, 0, len(observers))

	for _, o := range observers {
		if o != nil {
			chained = append(chained, o)
		}
	}

	return ObserverFunc(func(probabilityDecrement float64) {
		for _, o := range chained {
			o.StateChanged(probabilityDecrement)
		}
	})
}

func checkPrecision(p int) error {
	if p < MinP || p > MaxP {
		return fmt.Errorf("%w: %d", ErrInvalidPrecision, p)
	}

	return nil
}

var (
	_ Counter             = (*HyperLogLog)(nil)
	_ Counter             = (*UltraLogLog)(nil)
	_ StateChangeObserver = (*MartingaleEstimator)(nil)
)
