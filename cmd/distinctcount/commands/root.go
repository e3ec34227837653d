// Package commands implements CLI command handlers for distinctcount.
package commands

import (
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by all commands.
type rootOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsFile string
	verbose     bool
	quiet       bool
}

// NewRootCommand creates the distinctcount command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "distinctcount",
		Short: "Approximate distinct counting with HyperLogLog and UltraLogLog sketches",
		Long: `distinctcount estimates the number of distinct lines in its input with
constant memory and stores the sketches as mergeable snapshots.

Commands:
  count     Count distinct keys read from files or stdin
  merge     Merge snapshots into one
  downsize  Reduce the precision of a snapshot
  inspect   Show registers, estimators and error bounds of a snapshot
  config    Show the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default is ./distinctcount.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress output")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newCountCommand(opts))
	rootCmd.AddCommand(newMergeCommand(opts))
	rootCmd.AddCommand(newDownsizeCommand(opts))
	rootCmd.AddCommand(newInspectCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// PrintError writes err in the CLI error format.
func PrintError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
}

// notify prints a highlighted status line unless --quiet is set.
func (o *rootOptions) notify(w io.Writer, format string, args ...any) {
	if o.quiet {
		return
	}

	color.New(color.FgGreen).Fprintf(w, format+"\n", args...)
}
