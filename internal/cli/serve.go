package cli

import (
	"time"

	"github.com/spf13/cobra"

	"demo-trader/internal/api"
	"demo-trader/internal/metrics"
	"demo-trader/internal/resilience"
	"demo-trader/internal/stream"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo account over HTTP",
		Long: `Serve the demo account JSON API under /api/demo, the WebSocket event
stream at /api/demo/stream, Prometheus metrics at /metrics and a health
check at /healthz. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			app.Hub = stream.NewHub()
			app.Hub.Start(ctx)
			defer app.Hub.Stop()
			if app.Metrics == nil {
				app.Metrics = metrics.New()
			}

			svc, err := app.Service(ctx)
			if err != nil {
				return err
			}
			health := resilience.NewHealthChecker(5 * time.Second)
			if app.breaker != nil {
				health.Register("quotes", resilience.BreakerHealthCheck(app.breaker))
			}

			debug, _ := cmd.Flags().GetBool("debug")
			server := api.NewServer(svc, api.Options{
				Hub:          app.Hub,
				Metrics:      app.Metrics,
				Logger:       &app.Logger,
				Debug:        debug,
				Health:       health,
				ReadTimeout:  app.Config.Server.ReadTimeout,
				WriteTimeout: app.Config.Server.WriteTimeout,
			})

			app.Logger.Info().
				Str("addr", addr).
				Bool("read_only", svc.ReadOnly()).
				Msg("Starting demo trading server")
			return server.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
