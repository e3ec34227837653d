package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
	"github.com/Sumatoshi-tech/distinctcount/pkg/safeconv"
)

const (
	// maxKeyLength bounds a single input line.
	maxKeyLength = humanize.MiByte

	estimatorMartingale = "martingale"
	stdinSketchName     = "stdin"
)

type countOptions struct {
	variant    string
	estimator  string
	output     string
	save       string
	precision  int
	martingale bool
}

// countResult is the outcome of a count run.
type countResult struct {
	Variant               string  `json:"variant"                 yaml:"variant"`
	Estimator             string  `json:"estimator"               yaml:"estimator"`
	Snapshot              string  `json:"snapshot,omitempty"      yaml:"snapshot,omitempty"`
	Lines                 int64   `json:"lines"                   yaml:"lines"`
	Count                 uint64  `json:"count"                   yaml:"count"`
	Estimate              float64 `json:"estimate"                yaml:"estimate"`
	RelativeStandardError float64 `json:"relative_standard_error" yaml:"relative_standard_error"`
	Precision             uint8   `json:"precision"               yaml:"precision"`
}

func (r *countResult) title() string { return "Distinct count" }

func (r *countResult) fields() []field {
	fields := []field{
		{"Lines read", humanize.Comma(r.Lines)},
		{"Distinct (estimate)", humanize.Comma(int64(safeconv.ClampUint64ToInt(r.Count)))},
		{"Relative std. error", fmt.Sprintf("%.3f%%", 100*r.RelativeStandardError)},
		{"Variant", r.Variant},
		{"Precision", r.Precision},
		{"Estimator", r.Estimator},
	}

	if r.Snapshot != "" {
		fields = append(fields, field{"Snapshot", r.Snapshot})
	}

	return fields
}

func newCountCommand(root *rootOptions) *cobra.Command {
	opts := &countOptions{}

	cmd := &cobra.Command{
		Use:   "count [files...]",
		Short: "Count distinct keys read from files or stdin",
		Long: `Count reads newline separated keys from the given files, or from stdin
when no file is given, and prints the estimated number of distinct keys.
Empty lines are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := checkOutputFormat(opts.output)
			if err != nil {
				return err
			}

			return runTraced(cmd, root, "count", func(ctx context.Context, a *app) error {
				return runCount(ctx, cmd, a, opts, args)
			})
		},
	}

	cmd.Flags().StringVar(&opts.variant, "variant", "", "sketch variant: ultraloglog or hyperloglog (default from config)")
	cmd.Flags().IntVarP(&opts.precision, "precision", "p", 0, "precision in [3, 26] (default from config)")
	cmd.Flags().StringVar(&opts.estimator, "estimator", "", "estimator name (default from config)")
	cmd.Flags().BoolVar(&opts.martingale, "martingale", false, "track a martingale estimate during insertion")
	cmd.Flags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&opts.save, "save", "", "save the sketch as a snapshot (path or name)")

	return cmd
}

// applySketchFlags overrides the sketch section with explicitly set flags.
func applySketchFlags(cmd *cobra.Command, a *app, opts *countOptions) error {
	sketchCfg := &a.cfg.Sketch

	if cmd.Flags().Changed("variant") {
		sketchCfg.Variant = opts.variant
	}

	if cmd.Flags().Changed("precision") {
		sketchCfg.Precision = opts.precision
		sketchCfg.MemoryBudget = ""
	}

	if cmd.Flags().Changed("estimator") {
		sketchCfg.Estimator = opts.estimator
	}

	if opts.martingale {
		sketchCfg.Martingale = true
	}

	err := a.cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid sketch flags: %w", err)
	}

	return nil
}

func runCount(ctx context.Context, cmd *cobra.Command, a *app, opts *countOptions, args []string) error {
	err := applySketchFlags(cmd, a, opts)
	if err != nil {
		return err
	}

	variant, err := hll.ParseVariant(a.cfg.Sketch.Variant)
	if err != nil {
		return err
	}

	p, err := a.cfg.Resolve()
	if err != nil {
		return err
	}

	precision, err := safeconv.IntToUint8(p)
	if err != nil {
		return err
	}

	name := sketchName(opts.save)
	sketchOpts := append(a.sketchOptions(), hll.WithVariant(variant), hll.WithObserver(a.metrics.Observer(ctx, name)))

	sketch, err := hll.New(precision, sketchOpts...)
	if err != nil {
		return err
	}

	lines, err := addInputs(cmd, sketch, args)
	a.metrics.RecordItems(ctx, name, lines)

	if err != nil {
		return err
	}

	result, err := summarize(sketch, a.cfg.Sketch.Estimator, a.cfg.Sketch.Martingale)
	if err != nil {
		return err
	}

	result.Lines = lines
	a.metrics.RecordEstimate(ctx, name, result.Estimator, result.Estimate)
	a.logger.DebugContext(ctx, "count finished",
		"lines", lines, "estimate", result.Estimate, "variant", result.Variant, "precision", precision)

	if opts.save != "" {
		result.Snapshot, err = a.saveSketch(ctx, opts.save, sketch)
		if err != nil {
			return err
		}
	}

	return writeReport(cmd.OutOrStdout(), opts.output, result)
}

// summarize computes the reported estimate. An explicit estimator takes
// precedence over the martingale estimate.
func summarize(sketch *hll.Sketch, estimator string, martingale bool) (*countResult, error) {
	result := &countResult{
		Variant:               sketch.Variant().String(),
		Precision:             sketch.Precision(),
		RelativeStandardError: sketch.Variant().RelativeStandardError(int(sketch.Precision())),
	}

	switch {
	case estimator == "" && martingale:
		result.Estimator = estimatorMartingale
		result.Estimate = sketch.Estimate()
	default:
		estimate, err := sketch.EstimateWith(estimator)
		if err != nil {
			return nil, err
		}

		if estimator == "" {
			estimator = sketch.Variant().Estimators()[0]
		}

		result.Estimator = estimator
		result.Estimate = estimate
	}

	result.Count = roundEstimate(result.Estimate)

	return result, nil
}

func addInputs(cmd *cobra.Command, sketch *hll.Sketch, paths []string) (int64, error) {
	if len(paths) == 0 {
		return addLines(cmd.InOrStdin(), sketch)
	}

	var total int64

	for _, path := range paths {
		n, err := addFile(path, sketch)
		total += n

		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func addFile(path string, sketch *hll.Sketch) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return addLines(f, sketch)
}

func addLines(r io.Reader, sketch *hll.Sketch) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*humanize.KiByte), maxKeyLength)

	var n int64

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		sketch.Add(line)

		n++
	}

	err := scanner.Err()
	if err != nil {
		return n, fmt.Errorf("read input: %w", err)
	}

	return n, nil
}

// sketchName labels metrics of a count run.
func sketchName(save string) string {
	if save == "" {
		return stdinSketchName
	}

	base := filepath.Base(save)

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// roundEstimate converts an estimate to an integer count, saturating at the
// uint64 range.
func roundEstimate(estimate float64) uint64 {
	if estimate >= math.MaxUint64 {
		return math.MaxUint64
	}

	return uint64(math.Round(estimate))
}
