package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anstrom/topodraw/internal/api/middleware"
	"github.com/anstrom/topodraw/internal/db"
	"github.com/anstrom/topodraw/internal/inventory"
	"github.com/anstrom/topodraw/internal/pipeline"
	"github.com/anstrom/topodraw/internal/report"
)

const runIDHeader = "X-Run-ID"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`

	// Last refresh of the system collectors, when metrics are enabled
	MetricsUpdated *time.Time `json:"metrics_updated,omitempty"`
}

// ServicesResponse lists the aggregated service tables of one report.
type ServicesResponse struct {
	RunID    string                   `json:"run_id"`
	Services []inventory.ServiceTable `json:"services"`
	Skipped  int                      `json:"skipped"`
}

// HostSummary is one host box as it would be drawn.
type HostSummary struct {
	PrimaryAddress string   `json:"primary_address"`
	Items          []string `json:"items"`
}

// ClusterSummary is the set of hosts at one hop distance.
type ClusterSummary struct {
	Distance int           `json:"distance"`
	Hosts    []HostSummary `json:"hosts"`
}

// HostsResponse lists the clusters of one report.
type HostsResponse struct {
	RunID    string           `json:"run_id"`
	Clusters []ClusterSummary `json:"clusters"`
}

// RunsResponse lists stored runs.
type RunsResponse struct {
	Runs []db.Run `json:"runs"`
}

// livenessHandler godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /liveness [get]
// @ID getLiveness
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	s.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// healthHandler godoc
// @Summary Health check
// @Description Reports uptime, the last metrics refresh and database connectivity.
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
// @ID getHealth
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	uptime := time.Since(s.startTime)
	var metricsUpdated *time.Time
	if s.deps.Metrics != nil {
		uptime = s.deps.Metrics.GetUptime()
		if last := s.deps.Metrics.GetLastUpdate(); !last.IsZero() {
			last = last.UTC()
			metricsUpdated = &last
		}
	}

	response := HealthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC(),
		Uptime:         uptime.Round(time.Second).String(),
		Checks:         map[string]string{},
		MetricsUpdated: metricsUpdated,
	}
	status := http.StatusOK

	if s.deps.Database != nil {
		if err := s.deps.Database.PingContext(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response.Checks["database"] = "ok"
		}
	}

	s.WriteJSON(w, r, status, response)
}

// newRenderer builds a pipeline for one request. skip_incomplete overrides
// the configured default.
func (s *Server) newRenderer(r *http.Request) *pipeline.Renderer {
	opts := []pipeline.Option{
		pipeline.WithLayout(s.config.Layout),
		pipeline.WithSkipIncomplete(s.GetQueryParamBool(r, "skip_incomplete", s.config.Services.SkipIncomplete)),
		pipeline.WithRecorder(s.recorder),
		pipeline.WithLogger(s.logger.WithFields("request_id", middleware.GetRequestID(r))),
	}
	if s.deps.Resolver != nil {
		opts = append(opts, pipeline.WithResolver(s.deps.Resolver), pipeline.WithResolveWorkers(s.config.Resolve.Workers))
	}
	if s.deps.Store != nil {
		opts = append(opts, pipeline.WithStore(s.deps.Store))
	}
	return pipeline.New(opts...)
}

func (s *Server) writeDiagram(w http.ResponseWriter, inv *pipeline.Inventory, data []byte) {
	w.Header().Set("Content-Type", drawioContentType)
	w.Header().Set(runIDHeader, inv.RunID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("Failed to write diagram", "error", err)
	}
}

// renderHandler godoc
// @Summary Render a diagram
// @Description Parses an nmap XML report and returns the draw.io diagram.
// @Tags Diagrams
// @Accept xml
// @Produce xml
// @Param skip_incomplete query bool false "Skip services without name or product"
// @Success 200 {string} string "mxGraphModel document"
// @Header 200 {string} X-Run-ID "Run identifier"
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /render [post]
// @ID postRender
func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	data, inv, err := s.newRenderer(r).Run(r.Context(), report.NewXMLSource(r.Body), "api")
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeDiagram(w, inv, data)
}

// servicesHandler godoc
// @Summary Aggregate services
// @Description Returns the service tables of an nmap XML report.
// @Tags Inventory
// @Accept xml
// @Produce json
// @Param skip_incomplete query bool false "Skip services without name or product"
// @Success 200 {object} ServicesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /services [post]
// @ID postServices
func (s *Server) servicesHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := s.newRenderer(r).Analyze(r.Context(), report.NewXMLSource(r.Body))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	s.WriteJSON(w, r, http.StatusOK, ServicesResponse{
		RunID:    inv.RunID.String(),
		Services: inv.Tables.Services,
		Skipped:  inv.Tables.Skipped(),
	})
}

// hostsHandler godoc
// @Summary Group hosts
// @Description Returns the hosts of an nmap XML report grouped by hop distance.
// @Tags Inventory
// @Accept xml
// @Produce json
// @Success 200 {object} HostsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /hosts [post]
// @ID postHosts
func (s *Server) hostsHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := s.newRenderer(r).Analyze(r.Context(), report.NewXMLSource(r.Body))
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	clusters := make([]ClusterSummary, 0, len(inv.Clusters))
	for _, c := range inv.Clusters {
		summary := ClusterSummary{Distance: c.Distance, Hosts: make([]HostSummary, 0, len(c.Hosts))}
		for _, h := range c.Hosts {
			items := inventory.Project(h)
			labels := make([]string, len(items))
			for i, item := range items {
				labels[i] = item.Label()
			}
			summary.Hosts = append(summary.Hosts, HostSummary{PrimaryAddress: h.PrimaryAddress(), Items: labels})
		}
		clusters = append(clusters, summary)
	}

	s.WriteJSON(w, r, http.StatusOK, HostsResponse{RunID: inv.RunID.String(), Clusters: clusters})
}

// scanHandler godoc
// @Summary Scan and render
// @Description Runs nmap against the configured targets and returns the diagram.
// @Tags Diagrams
// @Produce xml
// @Success 200 {string} string "mxGraphModel document"
// @Failure 502 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /scan [post]
// @ID postScan
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scanner == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("scanning is not configured"))
		return
	}

	raw, err := s.deps.Scanner.Scan(r.Context())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}

	data, inv, err := s.newRenderer(r).Run(r.Context(), report.NewXMLSource(bytes.NewReader(raw)), "scan")
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeDiagram(w, inv, data)
}

// runsHandler godoc
// @Summary List runs
// @Description Lists stored runs, newest first.
// @Tags Store
// @Produce json
// @Param limit query int false "Maximum runs" minimum(1) maximum(500) default(20)
// @Success 200 {object} RunsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /runs [get]
// @ID getRuns
func (s *Server) runsHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, fmt.Errorf("run store is not configured"))
		return
	}

	limit, err := s.GetQueryParamInt(r, "limit", defaultRunsLimit)
	if err != nil || limit < 1 || limit > maxRunsLimit {
		s.writeError(w, r, http.StatusBadRequest,
			fmt.Errorf("limit must be an integer between 1 and %d", maxRunsLimit))
		return
	}

	runs, err := s.deps.Store.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, RunsResponse{Runs: runs})
}
