package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the effective values",
		Long: `Load the config file, .env and ROOMSTORE_* environment variables,
validate the result and print it.

Exit codes:
  0 - Configuration is valid
  2 - Configuration is invalid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return rootOpts.formatter(cmd).Success(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to encode config", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	return cmd
}
