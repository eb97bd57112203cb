package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_InitializationAndUpdate(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm == nil {
		t.Fatalf("NewPrometheusMetrics returned nil")
	}
	if pm.GetRegistry() == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	pm.UpdateSystemMetrics()
	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	after := pm.GetUptime()
	if before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
	if pm.GetLastUpdate().IsZero() {
		t.Error("expected last update to be set")
	}
}

func TestPrometheusMetrics_HTTPHandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.UpdateSystemMetrics()
	pm.IncRuns("success")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	handler := promhttp.HandlerFor(pm.GetRegistry(), promhttp.HandlerOpts{})
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, name := range []string{"topodraw_system_uptime_seconds", "topodraw_pipeline_runs_total"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in output", name)
		}
	}
}

func TestPrometheusMetrics_PipelineMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncRuns("success")
	pm.IncRuns("success")
	pm.IncRuns("error")
	if got := testutil.ToFloat64(pm.runsTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successful runs, got %v", got)
	}
	if count := testutil.CollectAndCount(pm.runsTotal); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}

	pm.ObserveStage("parse", 5*time.Millisecond)
	pm.ObserveStage("build", 2*time.Millisecond)
	if count := testutil.CollectAndCount(pm.stageDuration); count != 2 {
		t.Errorf("expected 2 stage series, got %d", count)
	}

	pm.AddHostsParsed(3)
	pm.AddHostsParsed(4)
	if got := testutil.ToFloat64(pm.hostsParsed); got != 7 {
		t.Errorf("expected 7 hosts parsed, got %v", got)
	}

	pm.IncUnexpectedEvents("in_host")
	if got := testutil.ToFloat64(pm.unexpectedEvents.WithLabelValues("in_host")); got != 1 {
		t.Errorf("expected 1 unexpected event, got %v", got)
	}

	pm.SetServiceTables(5)
	pm.SetServiceTables(2)
	if got := testutil.ToFloat64(pm.serviceTables); got != 2 {
		t.Errorf("expected service tables gauge 2, got %v", got)
	}

	pm.AddCellsEmitted(12)
	if got := testutil.ToFloat64(pm.cellsEmitted); got != 12 {
		t.Errorf("expected 12 cells, got %v", got)
	}

	pm.IncErrors("MALFORMED_RECORD")
	if got := testutil.ToFloat64(pm.runErrors.WithLabelValues("MALFORMED_RECORD")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestPrometheusMetrics_ScanDatabaseAndAPIMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementScansTotal("success")
	pm.RecordScanDuration(3 * time.Second)
	if got := testutil.ToFloat64(pm.scansTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 scan, got %v", got)
	}

	pm.RecordDatabaseQuery("save_inventory", 10*time.Millisecond, true)
	pm.RecordDatabaseQuery("save_inventory", 10*time.Millisecond, false)
	if count := testutil.CollectAndCount(pm.dbQueries); count != 2 {
		t.Errorf("expected success and error series, got %d", count)
	}

	pm.IncrementHTTPRequests("POST", "/api/v1/render", "200")
	pm.RecordHTTPDuration("POST", "/api/v1/render", 50*time.Millisecond)
	if got := testutil.ToFloat64(pm.httpRequests.WithLabelValues("POST", "/api/v1/render", "200")); got != 1 {
		t.Errorf("expected 1 request, got %v", got)
	}
}

func TestPrometheusMetrics_WriteTextfile(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.AddHostsParsed(2)

	path := filepath.Join(t.TempDir(), "topodraw.prom")
	if err := pm.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), "topodraw_pipeline_hosts_parsed_total 2") {
		t.Errorf("expected hosts parsed sample in textfile, got:\n%s", data)
	}
}

func TestPrometheusMetrics_StartPeriodicUpdates(t *testing.T) {
	pm := NewPrometheusMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pm.StartPeriodicUpdates(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartPeriodicUpdates did not return after cancel")
	}
	if pm.GetLastUpdate().IsZero() {
		t.Error("expected periodic updates to set last update")
	}
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.IncRuns("success")
	r.ObserveStage("parse", time.Second)
	r.AddHostsParsed(1)
	r.IncUnexpectedEvents("in_host")
	r.SetServiceTables(1)
	r.AddCellsEmitted(1)
	r.IncErrors("UNKNOWN")
}
