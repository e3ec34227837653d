package distinct

import (
	"fmt"
	"math"
)

// Constants of the maximum-likelihood estimators. For a register model with
// Fisher information I per register and third-order cumulant K, the estimate
// m*x carries a relative bias of C/m with C = ln2/(2I) - K*ln2/(4I^2), and a
// relative variance of V/m with V = ln2/I.
const (
	zeta2   = math.Pi * math.Pi / 6
	zeta3   = 1.2020569031595942853997381615114499907649862923405
	catalan = 0.91596559417721901505460351493238411077414937428167

	hllMLInformation = zeta2 - 1
	hllMLCumulant    = 10 + 2*zeta2 - 12*zeta3
	hllMLBias        = math.Ln2/(2*hllMLInformation) - hllMLCumulant*math.Ln2/(4*hllMLInformation*hllMLInformation)
	hllMLVariance    = math.Ln2 / hllMLInformation

	ullMLInformation = math.Pi*math.Pi + 8*catalan - 16
	ullMLCumulant    = 352 + 2*math.Pi*math.Pi + 16*catalan - 168*zeta3 - 6*math.Pi*math.Pi*math.Pi
	ullMLBias        = math.Ln2/(2*ullMLInformation) - ullMLCumulant*math.Ln2/(4*ullMLInformation*ullMLInformation)
	ullMLVariance    = math.Ln2 / ullMLInformation

	// mlRelativeErrorFraction is the solver tolerance as a fraction of the
	// relative standard error of the estimate.
	mlRelativeErrorFraction = 1e-3
)

// HyperLogLogEstimator selects how a HyperLogLog state is turned into an estimate.
type HyperLogLogEstimator int

// HyperLogLog estimators.
const (
	// HLLSmallRangeCorrectedRaw is the raw harmonic-mean estimator with a
	// closed-form correction for empty registers. It is the default.
	HLLSmallRangeCorrectedRaw HyperLogLogEstimator = iota

	// HLLCorrectedRaw additionally corrects for saturated registers.
	HLLCorrectedRaw

	// HLLMaximumLikelihood solves the maximum-likelihood equation of the
	// register values. It is the most accurate and the slowest.
	HLLMaximumLikelihood
)

var hllEstimatorNames = [...]string{
	HLLSmallRangeCorrectedRaw: "small_range_corrected_raw",
	HLLCorrectedRaw:           "corrected_raw",
	HLLMaximumLikelihood:      "maximum_likelihood",
}

// String returns the configuration name of the estimator.
func (e HyperLogLogEstimator) String() string {
	if e < 0 || int(e) >= len(hllEstimatorNames) {
		return fmt.Sprintf("HyperLogLogEstimator(%d)", int(e))
	}

	return hllEstimatorNames[e]
}

// ParseHyperLogLogEstimator returns the estimator with the given name. An
// empty name selects the default.
func ParseHyperLogLogEstimator(name string) (HyperLogLogEstimator, error) {
	if name == "" {
		return HLLSmallRangeCorrectedRaw, nil
	}

	for i, n := range hllEstimatorNames {
		if n == name {
			return HyperLogLogEstimator(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownEstimator, name)
}

// Estimate returns the distinct count estimate of s. Unknown estimator
// values fall back to the default.
func (e HyperLogLogEstimator) Estimate(s *HyperLogLog) float64 {
	switch e {
	case HLLCorrectedRaw:
		return hllCorrectedRawEstimate(s.p, s.state)
	case HLLMaximumLikelihood:
		return hllMaximumLikelihoodEstimate(s.p, s.state)
	default:
		return hllSmallRangeCorrectedRawEstimate(s.p, s.state)
	}
}

// UltraLogLogEstimator selects how an UltraLogLog state is turned into an estimate.
type UltraLogLogEstimator int

// UltraLogLog estimators.
const (
	// ULLOptimalFGRA is the generalized remaining area estimator with
	// closed-form corrections for nearly empty and saturated registers.
	// It is the default.
	ULLOptimalFGRA UltraLogLogEstimator = iota

	// ULLMaximumLikelihood solves the maximum-likelihood equation of the
	// observed levels.
	ULLMaximumLikelihood
)

var ullEstimatorNames = [...]string{
	ULLOptimalFGRA:       "optimal_fgra",
	ULLMaximumLikelihood: "maximum_likelihood",
}

// String returns the configuration name of the estimator.
func (e UltraLogLogEstimator) String() string {
	if e < 0 || int(e) >= len(ullEstimatorNames) {
		return fmt.Sprintf("UltraLogLogEstimator(%d)", int(e))
	}

	return ullEstimatorNames[e]
}

// ParseUltraLogLogEstimator returns the estimator with the given name. An
// empty name selects the default.
func ParseUltraLogLogEstimator(name string) (UltraLogLogEstimator, error) {
	if name == "" {
		return ULLOptimalFGRA, nil
	}

	for i, n := range ullEstimatorNames {
		if n == name {
			return UltraLogLogEstimator(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownEstimator, name)
}

// Estimate returns the distinct count estimate of s. Unknown estimator
// values fall back to the default.
func (e UltraLogLogEstimator) Estimate(s *UltraLogLog) float64 {
	if e == ULLMaximumLikelihood {
		return ullMaximumLikelihoodEstimate(s.Precision(), s.state)
	}

	return ullOptimalFGRAEstimate(s.Precision(), s.state)
}

// HyperLogLogRelativeStandardError returns the asymptotic relative standard
// error of the default HyperLogLog estimator at precision p.
func HyperLogLogRelativeStandardError(p int) float64 {
	return math.Sqrt(hllVarianceFactor / float64(uint(1)<<p))
}

// HyperLogLogMLRelativeStandardError returns the asymptotic relative
// standard error of the maximum-likelihood HyperLogLog estimator.
func HyperLogLogMLRelativeStandardError(p int) float64 {
	return math.Sqrt(hllMLVariance / float64(uint(1)<<p))
}

// UltraLogLogRelativeStandardError returns the asymptotic relative standard
// error of the default UltraLogLog estimator at precision p.
func UltraLogLogRelativeStandardError(p int) float64 {
	return math.Sqrt(ullVarianceFactor / float64(uint(1)<<p))
}

// UltraLogLogMLRelativeStandardError returns the asymptotic relative
// standard error of the maximum-likelihood UltraLogLog estimator.
func UltraLogLogMLRelativeStandardError(p int) float64 {
	return math.Sqrt(ullMLVariance / float64(uint(1)<<p))
}
