package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anstrom/topodraw/internal/config"
	"github.com/anstrom/topodraw/internal/db"
	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/metrics"
	"github.com/anstrom/topodraw/internal/pipeline"
	"github.com/anstrom/topodraw/internal/resolve"
)

const databaseTimeout = 10 * time.Second

// deps holds the collaborators a command builds from its configuration.
type deps struct {
	cfg      *config.Config
	logger   *logging.Logger
	metrics  *metrics.PrometheusMetrics
	database *db.DB
	store    *db.Store
	resolver *resolve.Resolver
}

// setup builds metrics, the resolver when enabled, and the run store when
// withStore is set.
func setup(ctx context.Context, cfg *config.Config, withStore bool) (*deps, error) {
	d := &deps{
		cfg:     cfg,
		logger:  logging.Default(),
		metrics: metrics.NewPrometheusMetrics(),
	}

	if cfg.Resolve.Enabled {
		res, err := resolve.New(cfg.Resolve.Server, cfg.Resolve.Timeout, d.logger)
		if err != nil {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to set up reverse DNS", err)
		}
		d.resolver = res
	}

	if withStore {
		database, err := connectDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.database = database
		d.store = db.NewStore(database, d.metrics)
	}
	return d, nil
}

// connectDatabase connects and migrates, failing when no database is
// configured.
func connectDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if !cfg.StoreEnabled() {
		return nil, errors.NewConfigFieldError(errors.CodeConfiguration,
			"no database configured; set database.database", "database.database", "")
	}

	ctx, cancel := context.WithTimeout(ctx, databaseTimeout)
	defer cancel()
	return db.ConnectAndMigrate(ctx, &cfg.Database)
}

// rendererOptions configures a pipeline from the deps.
func (d *deps) rendererOptions() []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithLayout(d.cfg.Layout),
		pipeline.WithSkipIncomplete(d.cfg.Services.SkipIncomplete),
		pipeline.WithLogger(d.logger),
		pipeline.WithRecorder(d.metrics),
	}
	if d.resolver != nil {
		opts = append(opts, pipeline.WithResolver(d.resolver), pipeline.WithResolveWorkers(d.cfg.Resolve.Workers))
	}
	if d.store != nil {
		opts = append(opts, pipeline.WithStore(d.store))
	}
	return opts
}

// flushMetrics writes the metrics textfile when one is configured.
func (d *deps) flushMetrics() {
	if d.cfg.Metrics.Textfile == "" {
		return
	}
	d.metrics.UpdateSystemMetrics()
	if err := d.metrics.WriteTextfile(d.cfg.Metrics.Textfile); err != nil {
		d.logger.Warn("Failed to write metrics textfile", "path", d.cfg.Metrics.Textfile, "error", err)
	}
}

func (d *deps) Close() {
	if d.database == nil {
		return
	}
	if err := d.database.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", err)
	}
}
