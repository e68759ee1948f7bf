package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewDbCommand creates the db command with its subcommands.
func NewDbCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database commands",
		Long: `Database commands for grantqa.

The connection comes from DATABASE_URL, or from DB_HOST, DB_PORT, DB_NAME,
DB_USER, DB_PASSWORD and DB_SSLMODE, or from the database section of the
config file.`,
		Aliases: []string{"database"},
	}

	cmd.AddCommand(newDbHealthCommand(deps))

	return cmd
}

func newDbHealthCommand(deps *CommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check database connectivity and pool statistics",
		Example: `  grantqa db health
  grantqa db health -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			status := b.Health.Health(cmd.Context())
			err = render(cmd.OutOrStdout(), deps.Config.OutputFormat, status, func(w io.Writer) error {
				state := "healthy"
				if !status.Healthy {
					state = "unhealthy"
				}
				fmt.Fprintf(w, "Database: %s\n", state)
				fmt.Fprintf(w, "  Latency:      %s\n", status.Latency)
				fmt.Fprintf(w, "  Connections:  %d total, %d idle, %d acquired\n",
					status.TotalConns, status.IdleConns, status.AcquiredConns)
				if status.Error != "" {
					fmt.Fprintf(w, "  Error:        %s\n", status.Error)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !status.Healthy {
				return fmt.Errorf("database unhealthy: %s", status.Error)
			}
			return nil
		},
	}
}
