// Package main provides the grantqa entry point.
// grantqa is the data quality dashboard for the grants and organizations catalog.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/grantqa/cmd"
	"github.com/otherjamesbrown/grantqa/config"
	"github.com/otherjamesbrown/grantqa/pkg/buildinfo"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
)

// Command groups shown in help.
const (
	groupBrowse = "browse"
	groupReview = "review"
	groupOps    = "ops"
)

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	configDir    string
	outputFormat string
	logLevel     string
	logJSON      bool
	databaseURL  string
	demo         bool
}

// skipsConfig lists commands that run without loading the configuration.
var skipsConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
	"init":       true,
}

// newRootCommand builds the command tree around deps.
func newRootCommand(deps *cmd.CommandDeps) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "grantqa",
		Short: "Grants catalog data quality dashboard",
		Long: `grantqa is the data quality dashboard for the grants and organizations
catalog.

It lists organizations and grants with completeness filters, searches
both, shows detail views, and runs the duplicate review workflow. The same
views are served as a JSON API by 'grantqa serve'.

COMMON WORKFLOWS:
  Overview:        grantqa dashboard
  Find gaps:       grantqa orgs list --filter low_completeness
  Find a record:   grantqa search "kulturråd"  →  grantqa orgs show <id>
  Review matches:  grantqa duplicates list  →  grantqa duplicates confirm <id>
  Run the API:     grantqa serve

Every command supports --output json and --output yaml. Use --demo to try
the commands against a small built-in catalog without a database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if flags.configDir != "" {
				if err := os.Setenv("GRANTQA_CONFIG_DIR", flags.configDir); err != nil {
					return err
				}
			}
			if skipsConfig[c.Name()] {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			// Override with command-line flags.
			if flags.outputFormat != "" {
				cfg.OutputFormat = config.OutputFormat(flags.outputFormat)
			}
			if flags.logLevel != "" {
				cfg.Log.Level = flags.logLevel
			}
			if flags.logJSON {
				cfg.Log.JSON = true
			}
			if flags.databaseURL != "" {
				if err := os.Setenv("DATABASE_URL", flags.databaseURL); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}

			deps.Config = cfg
			deps.Demo = flags.demo
			deps.Logger = logging.NewLogger(cfg.Logging())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configDir, "config-dir", "", "Configuration directory (default ~/.grantqa)")
	pf.StringVarP(&flags.outputFormat, "output", "o", "", "Output format: text, json, yaml")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "Log JSON lines instead of console output")
	pf.StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL connection URL (sets DATABASE_URL)")
	pf.BoolVar(&flags.demo, "demo", false, "Use the built-in demo catalog instead of PostgreSQL")

	root.AddGroup(
		&cobra.Group{ID: groupBrowse, Title: "Browse the catalog:"},
		&cobra.Group{ID: groupReview, Title: "Review:"},
		&cobra.Group{ID: groupOps, Title: "Operations:"},
	)

	addToGroup(root, groupBrowse,
		cmd.NewDashboardCommand(deps),
		cmd.NewSearchCommand(deps),
		cmd.NewOrgsCommand(deps),
		cmd.NewGrantsCommand(deps),
		cmd.NewIssuesCommand(deps),
	)
	addToGroup(root, groupReview,
		cmd.NewDuplicatesCommand(deps),
	)
	addToGroup(root, groupOps,
		cmd.NewServeCommand(deps),
		cmd.NewDbCommand(deps),
		cmd.NewConfigCommand(deps),
		newVersionCommand(flags),
	)

	return root
}

func addToGroup(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = group
		root.AddCommand(c)
	}
}

// newVersionCommand prints build information. It runs without loading the
// configuration, so only the --output flag selects the format.
func newVersionCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit hash, and build time of grantqa.

Use --output json or --output yaml for machine-readable output.`,
		RunE: func(c *cobra.Command, args []string) error {
			info := buildinfo.Get()
			out := c.OutOrStdout()

			switch config.OutputFormat(flags.outputFormat) {
			case config.OutputFormatJSON:
				return outputJSON(out, info)
			case config.OutputFormatYAML:
				return outputYAML(out, info)
			}

			fmt.Fprintf(out, "grantqa version %s\n", info.Version)
			fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
			return nil
		},
	}
}

// outputJSON outputs data as indented JSON.
func outputJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// outputYAML outputs data as YAML.
func outputYAML(w io.Writer, data interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// loadDotEnv reads .env from the working directory when present.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(cmd.DefaultDeps())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
