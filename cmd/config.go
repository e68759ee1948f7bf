package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/grantqa/config"
)

// NewConfigCommand creates the config command with its subcommands.
func NewConfigCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
		Long: `Show or create the grantqa configuration file.

The file lives at $GRANTQA_CONFIG_DIR/config.yaml, or ~/.grantqa/config.yaml
when GRANTQA_CONFIG_DIR is unset. Environment variables override it, and
command-line flags override both.`,
	}

	cmd.AddCommand(newConfigShowCommand(deps))
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			data, err := config.Marshal(deps.Config)
			if err != nil {
				return err
			}
			if deps.Config.OutputFormat == config.OutputFormatJSON {
				var generic map[string]any
				if err := yaml.Unmarshal(data, &generic); err != nil {
					return fmt.Errorf("decoding config: %w", err)
				}
				return outputJSON(out, generic)
			}

			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			if deps.Config.OutputFormat == config.OutputFormatText {
				fmt.Fprintf(out, "# %s\n", path)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
