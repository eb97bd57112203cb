// Package pipeline runs a scan report through parsing, aggregation and
// layout to produce a draw.io diagram.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/topodraw/internal/drawio"
	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/inventory"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/metrics"
	"github.com/anstrom/topodraw/internal/report"
	"github.com/anstrom/topodraw/internal/workers"
)

// Stdio selects standard input or output in place of a path.
const Stdio = "-"

const outputFilePerm = 0644

// Resolver looks up names for an address.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Store persists analyzed runs.
type Store interface {
	SaveInventory(ctx context.Context, runID uuid.UUID, source string,
		hosts []report.Host, services []inventory.ServiceTable) error
}

// Inventory is everything a run learned from one report.
type Inventory struct {
	RunID    uuid.UUID
	Hosts    []report.Host
	Clusters []inventory.Cluster
	Tables   *inventory.Tables
}

// Renderer runs the pipeline. It holds no per-run state, so one Renderer
// may serve concurrent runs.
type Renderer struct {
	layout         drawio.Layout
	skipIncomplete bool
	resolver       Resolver
	resolveWorkers int
	store          Store
	logger         *logging.Logger
	recorder       metrics.Recorder
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLayout overrides the diagram geometry.
func WithLayout(l drawio.Layout) Option {
	return func(r *Renderer) {
		r.layout = l
	}
}

// WithSkipIncomplete drops services lacking a name or product instead of
// failing.
func WithSkipIncomplete(skip bool) Option {
	return func(r *Renderer) {
		r.skipIncomplete = skip
	}
}

// WithResolver fills in names for hosts the report has none for.
func WithResolver(res Resolver) Option {
	return func(r *Renderer) {
		r.resolver = res
	}
}

// WithResolveWorkers sets how many reverse lookups run at once.
func WithResolveWorkers(n int) Option {
	return func(r *Renderer) {
		r.resolveWorkers = n
	}
}

// WithStore saves every run rendered through Run or RenderFile.
func WithStore(s Store) Option {
	return func(r *Renderer) {
		r.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Renderer) {
		r.recorder = rec
	}
}

// New creates a Renderer with the default layout.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		layout:         drawio.DefaultLayout(),
		resolveWorkers: workers.DefaultConfig().Size,
		logger:         logging.Default(),
		recorder:       metrics.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render turns a report into diagram bytes.
func (r *Renderer) Render(src report.EventSource) ([]byte, error) {
	return r.RenderContext(context.Background(), src)
}

// RenderContext is Render with a context for name resolution.
func (r *Renderer) RenderContext(ctx context.Context, src report.EventSource) ([]byte, error) {
	inv, err := r.Analyze(ctx, src)
	if err != nil {
		return nil, err
	}
	return r.Draw(inv), nil
}

// Analyze parses a report and derives its clusters and service tables.
func (r *Renderer) Analyze(ctx context.Context, src report.EventSource) (*Inventory, error) {
	runID := uuid.New()
	logger := r.logger.WithRunID(runID.String())

	inv, err := r.analyze(ctx, src, logger)
	if err != nil {
		r.recorder.IncErrors(string(errors.GetCode(err)))
		r.recorder.IncRuns("error")
		logger.ErrorRender("Pipeline run failed", err)
		return nil, err
	}
	inv.RunID = runID
	r.recorder.IncRuns("success")
	return inv, nil
}

func (r *Renderer) analyze(ctx context.Context, src report.EventSource, logger *logging.Logger) (*Inventory, error) {
	start := time.Now()
	parser := report.NewParser(report.WithLogger(logger), report.WithRecorder(r.recorder))
	hosts, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	r.recorder.ObserveStage("parse", time.Since(start))

	if r.resolver != nil {
		r.resolveNames(ctx, hosts, logger)
	}

	start = time.Now()
	clusters := inventory.Group(hosts)
	tables, err := inventory.Aggregate(hosts, r.skipIncomplete)
	if err != nil {
		return nil, err
	}
	r.recorder.ObserveStage("aggregate", time.Since(start))

	if n := tables.Skipped(); n > 0 {
		logger.Warn("Skipped incomplete services", "count", n)
	}
	logger.Debug("Analyzed scan report",
		"hosts", len(hosts), "clusters", len(clusters), "services", len(tables.Services))

	return &Inventory{
		Hosts:    hosts,
		Clusters: clusters,
		Tables:   tables,
	}, nil
}

// resolveNames adds reverse lookups as hostnames for hosts without any.
// Lookups run concurrently; names are appended in address order. Lookup
// failures leave the host unchanged.
func (r *Renderer) resolveNames(ctx context.Context, hosts []report.Host, logger *logging.Logger) {
	type lookup struct {
		host  int
		addr  string
		names []string
	}

	lookups := make([]*lookup, 0)
	for i, h := range hosts {
		if len(h.Hostnames) > 0 {
			continue
		}
		for _, addr := range h.Addresses {
			if addr.Reachable() {
				lookups = append(lookups, &lookup{host: i, addr: addr.Value})
			}
		}
	}
	if len(lookups) == 0 {
		return
	}

	jobs := make([]workers.Job, len(lookups))
	for i, l := range lookups {
		jobs[i] = workers.Func{
			JobID:   l.addr,
			JobType: "reverse_lookup",
			Fn: func(ctx context.Context) error {
				names, err := r.resolver.LookupAddr(ctx, l.addr)
				l.names = names
				return err
			},
		}
	}

	start := time.Now()
	pool := workers.New(workers.Config{Size: r.resolveWorkers}, logger)
	for i, res := range pool.Run(ctx, jobs) {
		l := lookups[i]
		if res.Error != nil {
			logger.Debug("Reverse lookup failed", "address", l.addr, "error", res.Error)
			continue
		}
		hosts[l.host].Hostnames = append(hosts[l.host].Hostnames, l.names...)
	}
	r.recorder.ObserveStage("resolve", time.Since(start))
}

// Draw lays out an inventory: clusters stacked top to bottom by distance,
// then service tables side by side to their right.
func (r *Renderer) Draw(inv *Inventory) []byte {
	start := time.Now()
	l := r.layout
	b := drawio.NewBuilder(l)

	id := 1
	y := l.Margin
	for _, c := range inv.Clusters {
		items := make([][]inventory.Item, len(c.Hosts))
		for i, h := range c.Hosts {
			items[i] = inventory.Project(h)
		}
		y = b.Network(items, drawio.Point{X: l.Margin, Y: y}, drawio.RootParent,
			"network-"+strconv.Itoa(c.Distance)) + l.ClusterGap
		id++
	}

	for _, t := range inv.Tables.Services {
		b.Service(t, l.TableOrigin(id), drawio.RootParent, "table"+strconv.Itoa(id))
		id++
	}

	out := b.Bytes()
	r.recorder.ObserveStage("build", time.Since(start))
	r.recorder.SetServiceTables(len(inv.Tables.Services))
	r.recorder.AddCellsEmitted(b.Cells())

	r.logger.WithRunID(inv.RunID.String()).InfoRender("Rendered diagram",
		"hosts", len(inv.Hosts), "clusters", len(inv.Clusters),
		"services", len(inv.Tables.Services), "cells", b.Cells(), "bytes", len(out))
	return out
}

// Run analyzes and draws one report and saves it when a store is set.
// source names the report in logs and stored runs. A store failure is
// logged and does not fail the run.
func (r *Renderer) Run(ctx context.Context, src report.EventSource, source string) ([]byte, *Inventory, error) {
	inv, err := r.Analyze(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	data := r.Draw(inv)

	if r.store != nil {
		err := r.store.SaveInventory(ctx, inv.RunID, source, inv.Hosts, inv.Tables.Services)
		if err != nil {
			r.recorder.IncErrors(string(errors.GetCode(err)))
			r.logger.WithRunID(inv.RunID.String()).ErrorDatabase("Failed to store run", err, "source", source)
		}
	}
	return data, inv, nil
}

// RenderFile renders the report at in and writes the diagram to out. Either
// may be Stdio. A file output is written to a temporary file next to it and
// renamed into place, so a failed run leaves any existing file untouched.
func (r *Renderer) RenderFile(ctx context.Context, in, out string) error {
	src, closeFn, err := openInput(in)
	if err != nil {
		return err
	}
	defer closeFn()

	r.logger.InfoParse("Rendering scan report", in, "output", out)
	data, _, err := r.Run(ctx, report.NewXMLSource(src), in)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return errors.WrapRecordError(errors.CodeCanceled, "render canceled", err)
	}
	return WriteOutput(out, data)
}

// AnalyzeFile parses and aggregates the report at in, which may be Stdio,
// without drawing or storing it.
func (r *Renderer) AnalyzeFile(ctx context.Context, in string) (*Inventory, error) {
	src, closeFn, err := openInput(in)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	return r.Analyze(ctx, report.NewXMLSource(src))
}

func openInput(in string) (io.Reader, func(), error) {
	if in == Stdio {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(in)
	if err != nil {
		return nil, nil, errors.ErrSourceUnavailable(in, err)
	}
	return f, func() { _ = f.Close() }, nil
}

// WriteOutput writes a diagram to out, which may be Stdio. A file is written
// to a temporary file next to it and renamed into place.
func WriteOutput(out string, data []byte) error {
	if out == Stdio {
		if _, err := os.Stdout.Write(data); err != nil {
			return errors.ErrSinkUnavailable(out, err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), "."+filepath.Base(out)+".*.tmp")
	if err != nil {
		return errors.ErrSinkUnavailable(out, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.ErrSinkUnavailable(out, err)
	}
	if err := tmp.Chmod(outputFilePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.ErrSinkUnavailable(out, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.ErrSinkUnavailable(out, err)
	}
	if err := os.Rename(tmpName, out); err != nil {
		cleanup()
		return errors.ErrSinkUnavailable(out, err)
	}
	return nil
}
