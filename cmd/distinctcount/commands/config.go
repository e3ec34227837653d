package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/distinctcount/pkg/config"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the configuration after applying files, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			return config.WriteYAML(cmd.OutOrStdout(), cfg)
		},
	})

	return cmd
}
