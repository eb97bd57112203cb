package cli

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anstrom/topodraw/internal/config"
	"github.com/anstrom/topodraw/internal/pipeline"
	"github.com/anstrom/topodraw/internal/report"
	"github.com/anstrom/topodraw/internal/scanning"
	"github.com/anstrom/topodraw/internal/scheduler"
)

var scanStore bool

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan targets with nmap and render the result",
	Long: `Scan runs nmap with service detection and traceroute against the targets
and renders the report as render would. With --schedule the scan repeats on a
cron expression, replacing the output after every successful run, until
interrupted.`,
	Example: `  topodraw scan --targets 192.168.1.0/24 --output network.drawio
  topodraw scan --targets "10.0.0.1,10.0.0.10" --ports "22,80,443" -o lab.drawio
  topodraw scan --targets 192.168.1.0/24 -o network.drawio --schedule "0 * * * *"`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringSlice("targets", nil, "targets to scan (IPs, hostnames, CIDR ranges)")
	scanCmd.Flags().String("ports", "", "port specification: '80,443' or '1-1000' or 'T:100'")
	scanCmd.Flags().String("schedule", "", "cron expression to repeat the scan")
	scanCmd.Flags().StringP("output", "o", "", "diagram file, - for stdout")
	scanCmd.Flags().Bool("skip-incomplete", false, "skip services without name or product instead of failing")
	scanCmd.Flags().Bool("resolve", false, "add reverse DNS names for hosts without hostnames")
	scanCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file after each run")
	scanCmd.Flags().BoolVar(&scanStore, "store", false, "save every run to the configured database")
}

func runScan(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd, map[string]string{
		"targets":          "scan.targets",
		"ports":            "scan.ports",
		"schedule":         "scan.schedule",
		"output":           "output",
		"skip-incomplete":  "services.skip_incomplete",
		"resolve":          "resolve.enabled",
		"metrics-textfile": "metrics.textfile",
	})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Scan.Targets) == 0 {
		return fmt.Errorf("no targets: use --targets or set scan.targets")
	}
	if err := validatePorts(cfg.Scan.Ports); err != nil {
		return fmt.Errorf("invalid port specification %q: %w", cfg.Scan.Ports, err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	d, err := setup(ctx, cfg, scanStore)
	if err != nil {
		return err
	}
	defer d.Close()

	scanner := newScanner(cfg, d)
	job := func(ctx context.Context) error {
		defer d.flushMetrics()
		return scanAndRender(ctx, scanner, pipeline.New(d.rendererOptions()...), cfg.Output)
	}

	if cfg.Scan.Schedule == "" {
		return job(ctx)
	}
	return runScheduled(ctx, cfg.Scan.Schedule, job, d)
}

func scanningConfig(cfg *config.Config) scanning.Config {
	return scanning.Config{
		Targets:          cfg.Scan.Targets,
		Ports:            cfg.Scan.Ports,
		ServiceDetection: cfg.Scan.ServiceDetection,
		OSDetection:      cfg.Scan.OSDetection,
		TraceRoute:       cfg.Scan.TraceRoute,
		Timeout:          cfg.Scan.Timeout,
	}
}

func newScanner(cfg *config.Config, d *deps) *scanning.Scanner {
	return scanning.NewScanner(scanningConfig(cfg), scanning.WithLogger(d.logger), scanning.WithRecorder(d.metrics))
}

// reportScanner is the part of scanning.Scanner scanAndRender needs.
type reportScanner interface {
	Scan(ctx context.Context) ([]byte, error)
}

// scanAndRender runs one scan and writes its diagram to out.
func scanAndRender(ctx context.Context, scanner reportScanner, r *pipeline.Renderer, out string) error {
	raw, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}

	data, _, err := r.Run(ctx, report.NewXMLSource(bytes.NewReader(raw)), "scan")
	if err != nil {
		return err
	}
	return pipeline.WriteOutput(out, data)
}

// runScheduled runs job on expr until ctx is canceled. Failed runs are
// logged and retried on the next tick.
func runScheduled(ctx context.Context, expr string, job scheduler.Func, d *deps) error {
	s := scheduler.New(d.logger)
	id, err := s.Add("scan", expr, job)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}
	defer s.Stop()

	for _, j := range s.Jobs() {
		if j.ID == id {
			d.logger.Info("Scheduled scan", "schedule", expr, "next_run", j.NextRun)
		}
	}

	<-ctx.Done()
	d.logger.Info("Stopping scheduled scans")
	return nil
}

// validatePorts checks an nmap port specification.
func validatePorts(ports string) error {
	if ports == "" {
		return fmt.Errorf("empty port specification")
	}

	// Top ports specification
	if strings.HasPrefix(ports, "T:") {
		return nil
	}

	for _, part := range strings.Split(ports, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, "-") {
			if _, err := parsePort(part); err != nil {
				return fmt.Errorf("invalid port: %s", part)
			}
			continue
		}

		bounds := strings.Split(part, "-")
		if len(bounds) != 2 {
			return fmt.Errorf("invalid port range: %s", part)
		}
		start, err := parsePort(bounds[0])
		if err != nil {
			return fmt.Errorf("invalid start port in range: %s", bounds[0])
		}
		end, err := parsePort(bounds[1])
		if err != nil {
			return fmt.Errorf("invalid end port in range: %s", bounds[1])
		}
		if start > end {
			return fmt.Errorf("start port cannot be greater than end port: %s", part)
		}
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("port out of range: %s", s)
	}
	return port, nil
}
