package cmd

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/grantqa/pkg/buildinfo"
	"github.com/otherjamesbrown/grantqa/pkg/logging"
	"github.com/otherjamesbrown/grantqa/pkg/web"
)

// serveConnectAttempts lets the server wait out a database that starts
// after it.
const serveConnectAttempts = 5

// NewServeCommand creates the serve command.
func NewServeCommand(deps *CommandDeps) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		Long: `Run the dashboard JSON API.

Serves the organization and grant lists, federated search, detail views,
the duplicate review queue and the validation issues list, plus /healthz,
/metrics and /version.

The listen address comes from --listen, GRANTQA_LISTEN_ADDRESS or the
config file, in that order. With --demo the server runs against a small
in-memory catalog and needs no database.`,
		Example: `  grantqa serve
  grantqa serve --listen :9090
  grantqa serve --demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := deps.Config.ListenAddress
			if listen != "" {
				addr = listen
			}
			if deps.Config.Log.JSON {
				gin.SetMode(gin.ReleaseMode)
			}

			deps.ConnectAttempts = serveConnectAttempts
			b, err := deps.open(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			deps.Logger.Info("Starting grantqa",
				logging.F("version", buildinfo.Version),
				logging.F("commit", buildinfo.Commit),
				logging.F("address", addr),
				logging.F("demo", deps.Demo))

			srv := web.NewServer(b.Services(), deps.Logger, deps.Metrics, deps.Registry)
			return srv.Run(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "HTTP listen address (overrides config)")

	return cmd
}
