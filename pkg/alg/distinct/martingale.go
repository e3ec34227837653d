package distinct

import "fmt"

// MartingaleEstimator tracks a distinct count estimate incrementally while
// elements are added to one sketch.
//
// Pass the same estimator as observer to every insertion into its sketch.
// Each state change adds the reciprocal of the state change probability
// before the change, which yields an unbiased estimate with lower variance
// than any estimator working on the final state alone. Merging, downsizing or
// resetting the sketch invalidates the estimate; call Set with the sketch's
// estimate and StateChangeProbability to continue from there.
//
// The zero value is not ready for use; create estimators with
// NewMartingaleEstimator.
type MartingaleEstimator struct {
	estimate    float64
	probability float64
}

// NewMartingaleEstimator returns an estimator for an empty sketch.
func NewMartingaleEstimator() *MartingaleEstimator {
	e := &MartingaleEstimator{}
	e.Reset()

	return e
}

// Reset sets the estimate to 0 and the state change probability to 1.
func (e *MartingaleEstimator) Reset() {
	e.estimate = 0
	e.probability = 1
}

// Set overwrites the estimate and the state change probability. The estimate
// must be nonnegative and the probability must be in [0, 1].
func (e *MartingaleEstimator) Set(estimate, probability float64) error {
	if !(estimate >= 0) {
		return fmt.Errorf("%w: estimate %v", ErrInvalidMartingaleState, estimate)
	}

	if !(probability >= 0 && probability <= 1) {
		return fmt.Errorf("%w: probability %v", ErrInvalidMartingaleState, probability)
	}

	// Turns -0 into +0 so that a later change yields +Inf, not -Inf.
	if probability <= 0 {
		probability = 0
	}

	e.estimate = estimate
	e.probability = probability

	return nil
}

// StateChanged implements StateChangeObserver.
func (e *MartingaleEstimator) StateChanged(probabilityDecrement float64) {
	e.estimate += 1 / e.probability

	e.probability -= probabilityDecrement
	if e.probability <= 0 {
		// Rounding may push the probability below zero. The next change then
		// drives the estimate to +Inf.
		e.probability = 0
	}
}

// DistinctCountEstimate returns the current estimate.
func (e *MartingaleEstimator) DistinctCountEstimate() float64 {
	return e.estimate
}

// StateChangeProbability returns the tracked state change probability.
func (e *MartingaleEstimator) StateChangeProbability() float64 {
	return e.probability
}

// String implements fmt.Stringer.
func (e *MartingaleEstimator) String() string {
	return fmt.Sprintf("MartingaleEstimator{estimate=%v, stateChangeProbability=%v}", e.estimate, e.probability)
}
