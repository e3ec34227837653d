package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/distinctcount/pkg/safeconv"
)

const downsizeArgCount = 2

func newDownsizeCommand(root *rootOptions) *cobra.Command {
	var precision int

	cmd := &cobra.Command{
		Use:   "downsize <in> <out>",
		Short: "Reduce the precision of a snapshot",
		Long: `Downsize rewrites a snapshot at a lower precision. The result equals a
sketch that received the same keys at that precision. A precision at or
above the current one copies the snapshot unchanged.`,
		Args: cobra.ExactArgs(downsizeArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraced(cmd, root, "downsize", func(ctx context.Context, a *app) error {
				return runDownsize(ctx, cmd, a, args[0], args[1], precision)
			})
		},
	}

	cmd.Flags().IntVarP(&precision, "precision", "p", 0, "target precision in [3, 26]")
	_ = cmd.MarkFlagRequired("precision")

	return cmd
}

func runDownsize(ctx context.Context, cmd *cobra.Command, a *app, in, out string, precision int) error {
	p, err := safeconv.IntToUint8(precision)
	if err != nil {
		return err
	}

	sketch, _, err := a.loadSketch(ctx, in)
	if err != nil {
		return err
	}

	downsized, err := sketch.Downsize(p)
	if err != nil {
		return err
	}

	path, err := a.saveSketch(ctx, out, downsized)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "snapshot downsized",
		"from", sketch.Precision(), "to", downsized.Precision(), "out", path)
	a.opts.notify(cmd.OutOrStdout(), "downsized %s from p=%d to p=%d into %s",
		in, sketch.Precision(), downsized.Precision(), path)

	return nil
}
