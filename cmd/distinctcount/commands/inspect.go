package commands

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/distinctcount/pkg/safeconv"
)

const (
	inspectArgCount = 1

	// errorBandSigmas is the width of the reported error band in standard errors.
	errorBandSigmas = 2
)

// namedEstimate is the result of one estimator.
type namedEstimate struct {
	Name     string  `json:"name"     yaml:"name"`
	Estimate float64 `json:"estimate" yaml:"estimate"`
}

// inspectResult describes a stored snapshot.
type inspectResult struct {
	Path                   string          `json:"path"                     yaml:"path"`
	Variant                string          `json:"variant"                  yaml:"variant"`
	Estimates              []namedEstimate `json:"estimates"                yaml:"estimates"`
	Registers              uint            `json:"registers"                yaml:"registers"`
	StateSize              int             `json:"state_size"               yaml:"state_size"`
	StateChangeProbability float64         `json:"state_change_probability" yaml:"state_change_probability"`
	RelativeStandardError  float64         `json:"relative_standard_error"  yaml:"relative_standard_error"`
	LowerBound             float64         `json:"lower_bound"              yaml:"lower_bound"`
	UpperBound             float64         `json:"upper_bound"              yaml:"upper_bound"`
	Precision              uint8           `json:"precision"                yaml:"precision"`
}

func (r *inspectResult) title() string { return r.Path }

func (r *inspectResult) fields() []field {
	fields := []field{
		{"Variant", r.Variant},
		{"Precision", r.Precision},
		{"Registers", humanize.Comma(int64(r.Registers))},
		{"State size", humanize.IBytes(uint64(safeconv.MustIntToUint(r.StateSize)))},
		{"State change probability", fmt.Sprintf("%.6g", r.StateChangeProbability)},
	}

	for _, e := range r.Estimates {
		fields = append(fields, field{"Estimate (" + e.Name + ")", formatEstimate(e.Estimate, 1)})
	}

	fields = append(fields,
		field{"Relative std. error", fmt.Sprintf("%.3f%%", 100*r.RelativeStandardError)},
		field{fmt.Sprintf("%d-sigma band", errorBandSigmas), fmt.Sprintf("[%s, %s]",
			formatEstimate(r.LowerBound, 0), formatEstimate(r.UpperBound, 0))},
	)

	return fields
}

// formatEstimate renders an estimate with thousands separators. A saturated
// sketch can estimate +Inf.
func formatEstimate(v float64, decimals int) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}

	return humanize.CommafWithDigits(v, decimals)
}

func newInspectCommand(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Show registers, estimators and error bounds of a snapshot",
		Args:  cobra.ExactArgs(inspectArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := checkOutputFormat(output)
			if err != nil {
				return err
			}

			return runTraced(cmd, root, "inspect", func(ctx context.Context, a *app) error {
				result, inspectErr := inspectSnapshot(ctx, a, args[0])
				if inspectErr != nil {
					return inspectErr
				}

				return writeReport(cmd.OutOrStdout(), output, result)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")

	return cmd
}

func inspectSnapshot(ctx context.Context, a *app, ref string) (*inspectResult, error) {
	sketch, path, err := a.loadSketch(ctx, ref)
	if err != nil {
		return nil, err
	}

	variant := sketch.Variant()
	p := int(sketch.Precision())

	result := &inspectResult{
		Path:                   path,
		Variant:                variant.String(),
		Precision:              sketch.Precision(),
		Registers:              sketch.RegisterCount(),
		StateSize:              variant.StateSize(p),
		StateChangeProbability: sketch.StateChangeProbability(),
		RelativeStandardError:  variant.RelativeStandardError(p),
	}

	for _, name := range variant.Estimators() {
		estimate, estimateErr := sketch.EstimateWith(name)
		if estimateErr != nil {
			return nil, estimateErr
		}

		result.Estimates = append(result.Estimates, namedEstimate{Name: name, Estimate: estimate})
	}

	// The first estimator is the variant default.
	base := result.Estimates[0].Estimate
	band := errorBandSigmas * result.RelativeStandardError * base
	result.UpperBound = base + band

	if !math.IsInf(base, 1) {
		result.LowerBound = max(0, base-band)
	}

	return result, nil
}
