package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/distinctcount/pkg/alg/hll"
)

const mergeMinArgs = 2

func newMergeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <out> <in...>",
		Short: "Merge snapshots into one",
		Long: `Merge combines snapshots of the same variant. The result has the smallest
precision among the inputs and estimates the size of the union of their keys.`,
		Args: cobra.MinimumNArgs(mergeMinArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraced(cmd, root, "merge", func(ctx context.Context, a *app) error {
				return runMerge(ctx, cmd, a, args[0], args[1:])
			})
		},
	}
}

func runMerge(ctx context.Context, cmd *cobra.Command, a *app, out string, inputs []string) error {
	sketches := make([]*hll.Sketch, 0, len(inputs))

	for _, in := range inputs {
		sketch, _, err := a.loadSketch(ctx, in)
		if err != nil {
			return err
		}

		sketches = append(sketches, sketch)
	}

	merged, err := mergeAll(sketches)
	if err != nil {
		return err
	}

	for range sketches[1:] {
		a.metrics.RecordMerge(ctx, merged.Variant().String())
	}

	path, err := a.saveSketch(ctx, out, merged)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "snapshots merged",
		"inputs", len(inputs), "precision", merged.Precision(), "out", path)
	a.opts.notify(cmd.OutOrStdout(), "merged %d snapshots into %s (%s, p=%d, ~%d distinct)",
		len(inputs), path, merged.Variant(), merged.Precision(), merged.Count())

	return nil
}

// mergeAll merges sketches of one variant at their smallest precision.
func mergeAll(sketches []*hll.Sketch) (*hll.Sketch, error) {
	minP := sketches[0].Precision()
	for _, s := range sketches[1:] {
		minP = min(minP, s.Precision())
	}

	merged, err := sketches[0].Downsize(minP)
	if err != nil {
		return nil, err
	}

	for i, s := range sketches[1:] {
		err = merged.Merge(s)
		if err != nil {
			return nil, fmt.Errorf("merge input %d: %w", i+2, err)
		}
	}

	return merged, nil
}
