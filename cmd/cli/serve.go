package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anstrom/topodraw/internal/api"
	"github.com/anstrom/topodraw/internal/scanning"
)

const maxConcurrentScans = 1

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the render pipeline over HTTP",
	Long: `Serve starts the topodraw HTTP API. POST an nmap XML report to
/api/v1/render to get a draw.io diagram back, or to /api/v1/services and
/api/v1/hosts for JSON. When scan.targets is configured, POST /api/v1/scan
runs nmap and renders the result. Runs are stored when a database is
configured. Prometheus metrics are served on /metrics.`,
	Example: `  topodraw serve
  topodraw serve --listen 0.0.0.0 --port 9090
  curl --data-binary @scan.xml -H 'Content-Type: application/xml' \
    http://127.0.0.1:8080/api/v1/render > network.drawio`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "override listen address")
	serveCmd.Flags().Int("port", 0, "override listen port")
	serveCmd.Flags().Bool("resolve", false, "add reverse DNS names for hosts without hostnames")
}

func runServe(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd, map[string]string{
		"listen":  "api.listen_addr",
		"port":    "api.port",
		"resolve": "resolve.enabled",
	})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := setup(ctx, cfg, cfg.StoreEnabled())
	if err != nil {
		return err
	}
	defer d.Close()

	deps := api.Deps{Metrics: d.metrics}
	if d.resolver != nil {
		deps.Resolver = d.resolver
	}
	if d.store != nil {
		deps.Store = d.store
		deps.Database = d.database
	}
	if len(cfg.Scan.Targets) > 0 {
		limiter := scanning.NewLimiter(maxConcurrentScans)
		defer limiter.Close()
		deps.Scanner = scanning.NewScanner(scanningConfig(cfg), scanning.WithLogger(d.logger),
			scanning.WithRecorder(d.metrics), scanning.WithLimiter(limiter))
	}

	if cfg.Metrics.UpdateInterval > 0 {
		go d.metrics.StartPeriodicUpdates(ctx, cfg.Metrics.UpdateInterval)
	}

	server := api.New(cfg, deps)
	fmt.Fprintf(os.Stderr, "topodraw API listening on http://%s\n", server.GetAddress())
	return server.Start(ctx)
}
