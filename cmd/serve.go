package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docintel/internal/cache"
	"docintel/internal/config"
	"docintel/internal/docintel"
	"docintel/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document analysis HTTP server",
	Long: `Start the docintel HTTP server.

The server provides:
  - /         - Upload form
  - /analyze  - Analyze an uploaded document, returns the normalized JSON
  - /export   - Export detected tables as an .xlsx workbook
  - /healthz  - Health check
  - /metrics  - Prometheus metrics

Repeated uploads of the same document are served from a one-hour result
cache without another upstream call.

Examples:
  docintel serve                    # Start on default port 8080
  docintel serve --port 3000        # Start on custom port
  docintel serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		analyzerCfg := docintel.DefaultAnalyzerConfig()
		analyzerCfg.Endpoint = cfg.Endpoint
		analyzerCfg.AuthMode = cfg.AuthMode
		analyzerCfg.APIKey = cfg.APIKey
		analyzerCfg.TenantID = cfg.TenantID
		analyzerCfg.ClientID = cfg.ClientID
		analyzerCfg.CacheTTL = cfg.CacheTTL

		analyzer := docintel.NewLayoutAnalyzer(analyzerCfg).WithCache(cache.NewStore())

		host := cfg.ServerHost
		port := cfg.ServerPort
		if serveHost != "" {
			host = serveHost
		}
		if servePort != "" {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:     host,
			Port:     port,
			Analyzer: analyzer,
		})
		if err != nil {
			return err
		}

		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: DOCINTEL_HOST or 127.0.0.1)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: DOCINTEL_PORT or 8080)")

	rootCmd.AddCommand(serveCmd)
}
