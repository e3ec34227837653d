package hll

import (
	"fmt"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/distinct"
)

// Variant identifies the register layout of a Sketch. Its numeric value is
// the tag byte of the binary encoding.
type Variant uint8

// Supported variants.
const (
	// VariantUltraLogLog uses one byte per register.
	VariantUltraLogLog Variant = iota + 1

	// VariantHyperLogLog uses six bits per register.
	VariantHyperLogLog
)

// String returns the configuration name of the variant.
func (v Variant) String() string {
	switch v {
	case VariantUltraLogLog:
		return "ultraloglog"
	case VariantHyperLogLog:
		return "hyperloglog"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// ParseVariant returns the variant with the given configuration name.
func ParseVariant(name string) (Variant, error) {
	switch name {
	case "ultraloglog", "ull":
		return VariantUltraLogLog, nil
	case "hyperloglog", "hll":
		return VariantHyperLogLog, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
}

// StateSize returns the register state length in bytes at precision p.
func (v Variant) StateSize(p int) int {
	if v == VariantHyperLogLog {
		return distinct.HyperLogLogStateSize(p)
	}

	return distinct.UltraLogLogStateSize(p)
}

// RelativeStandardError returns the theoretical relative standard error of
// the variant's default estimator at precision p.
func (v Variant) RelativeStandardError(p int) float64 {
	if v == VariantHyperLogLog {
		return distinct.HyperLogLogRelativeStandardError(p)
	}

	return distinct.UltraLogLogRelativeStandardError(p)
}

// Estimators returns the names of all estimators of the variant, default first.
func (v Variant) Estimators() []string {
	if v == VariantHyperLogLog {
		return []string{
			distinct.HLLSmallRangeCorrectedRaw.String(),
			distinct.HLLCorrectedRaw.String(),
			distinct.HLLMaximumLikelihood.String(),
		}
	}

	return []string{
		distinct.ULLOptimalFGRA.String(),
		distinct.ULLMaximumLikelihood.String(),
	}
}

func (v Variant) valid() bool {
	return v == VariantUltraLogLog || v == VariantHyperLogLog
}

func (v Variant) create(p int) (distinct.Counter, error) {
	switch v {
	case VariantUltraLogLog:
		return distinct.NewUltraLogLog(p)
	case VariantHyperLogLog:
		return distinct.NewHyperLogLog(p)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, uint8(v))
	}
}

func (v Variant) wrap(state []byte) (distinct.Counter, error) {
	switch v {
	case VariantUltraLogLog:
		return distinct.WrapUltraLogLog(state)
	case VariantHyperLogLog:
		return distinct.WrapHyperLogLog(state)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, uint8(v))
	}
}

// The helpers below assume that every counter passed in was created for v.

func (v Variant) merge(dst, src distinct.Counter) error {
	if v == VariantHyperLogLog {
		return dst.(*distinct.HyperLogLog).Merge(src.(*distinct.HyperLogLog))
	}

	return dst.(*distinct.UltraLogLog).Merge(src.(*distinct.UltraLogLog))
}

func (v Variant) downsize(c distinct.Counter, p int) (distinct.Counter, error) {
	if v == VariantHyperLogLog {
		return c.(*distinct.HyperLogLog).Downsize(p)
	}

	return c.(*distinct.UltraLogLog).Downsize(p)
}

func (v Variant) clone(c distinct.Counter) distinct.Counter {
	if v == VariantHyperLogLog {
		return c.(*distinct.HyperLogLog).Clone()
	}

	return c.(*distinct.UltraLogLog).Clone()
}

func (v Variant) estimate(c distinct.Counter, name string) (float64, error) {
	if v == VariantHyperLogLog {
		e, err := distinct.ParseHyperLogLogEstimator(name)
		if err != nil {
			return 0, err
		}

		return c.(*distinct.HyperLogLog).EstimateWith(e), nil
	}

	e, err := distinct.ParseUltraLogLogEstimator(name)
	if err != nil {
		return 0, err
	}

	return c.(*distinct.UltraLogLog).EstimateWith(e), nil
}
