// Package db stores topology runs in PostgreSQL: the run itself, its hosts
// and its service tables with their bindings.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/inventory"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/report"
)

// sanitizeDBError converts raw database errors into safe, sanitized errors
// that don't expose internal SQL details or credentials.
// The original error is preserved in the Cause field for internal debugging.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if err == sql.ErrNoRows {
		return errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
	}

	if pqErr, ok := err.(*pq.Error); ok {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Referenced resource does not exist")
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Required field is missing")
		case "23514": // check_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Data validation failed")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "57P01": // admin_shutdown
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection lost")
		case "08000", "08003", "08006": // connection errors
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	return errors.WrapDatabaseError(errors.CodeDatabaseQuery,
		fmt.Sprintf("Database operation failed: %s", operation), operation, err)
}

const (
	// Default database configuration values.
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
)

// DB wraps sqlx.DB with additional functionality.
type DB struct {
	*sqlx.DB
}

// Config holds database configuration.
type Config struct {
	Host            string        `yaml:"host" json:"host" validate:"required_with=Database"`
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username" validate:"required_with=Database"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode" validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration.
// Database name, username, and password must be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// Enabled reports whether a database has been configured at all.
func (c Config) Enabled() bool {
	return c.Database != ""
}

// DSN builds the lib/pq connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Connect establishes a connection to PostgreSQL.
// Returns sanitized errors that don't leak credentials or DSN details.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", config.DSN())
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Failed to verify database connection", "ping", err)
	}

	logging.Default().InfoDatabase("Connected to database",
		"host", config.Host, "port", config.Port, "database", config.Database)
	return &DB{DB: db}, nil
}

// QueryRecorder receives the outcome of each store operation.
type QueryRecorder interface {
	RecordDatabaseQuery(operation string, duration time.Duration, success bool)
}

// Store persists topology runs.
type Store struct {
	db       *DB
	logger   *logging.Logger
	recorder QueryRecorder
}

// NewStore creates a store on db. recorder may be nil.
func NewStore(db *DB, recorder QueryRecorder) *Store {
	return &Store{
		db:       db,
		logger:   logging.Default().WithComponent("database"),
		recorder: recorder,
	}
}

func (s *Store) observe(operation string, start time.Time, err error) {
	if s.recorder != nil {
		s.recorder.RecordDatabaseQuery(operation, time.Since(start), err == nil)
	}
}

const (
	insertRunQuery = `
		INSERT INTO topology_runs (id, source, host_count, service_count)
		VALUES (:id, :source, :host_count, :service_count)`

	insertHostQuery = `
		INSERT INTO topology_hosts (
			id, run_id, host_index, primary_address, hostnames, addresses, os, distance
		)
		VALUES (
			:id, :run_id, :host_index, :primary_address, :hostnames, :addresses, :os, :distance
		)`

	insertServiceQuery = `
		INSERT INTO topology_services (
			id, run_id, table_index, name, product, version, extra_info
		)
		VALUES (
			:id, :run_id, :table_index, :name, :product, :version, :extra_info
		)`

	insertBindingQuery = `
		INSERT INTO topology_bindings (service_id, position, ip, port)
		VALUES (:service_id, :position, :ip, :port)`
)

// SaveInventory stores a run with its hosts and service tables in one
// transaction; nothing is stored if any insert fails.
func (s *Store) SaveInventory(ctx context.Context, runID uuid.UUID, source string,
	hosts []report.Host, services []inventory.ServiceTable) (err error) {
	start := time.Now()
	defer func() { s.observe("save_inventory", start, err) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	run := Run{ID: runID, Source: source, HostCount: len(hosts), ServiceCount: len(services)}
	if _, err := tx.NamedExecContext(ctx, insertRunQuery, run); err != nil {
		return sanitizeDBError("insert run", err)
	}

	for i, h := range hosts {
		if _, err := tx.NamedExecContext(ctx, insertHostQuery, NewHostRecord(runID, i, h)); err != nil {
			return sanitizeDBError("insert host", err)
		}
	}

	for i, t := range services {
		rec := NewServiceRecord(runID, i, t)
		if _, err := tx.NamedExecContext(ctx, insertServiceQuery, rec); err != nil {
			return sanitizeDBError("insert service", err)
		}
		for j, b := range t.Bindings {
			binding := BindingRecord{ServiceID: rec.ID, Position: j, IP: b.IP, Port: int(b.Port)}
			if _, err := tx.NamedExecContext(ctx, insertBindingQuery, binding); err != nil {
				return sanitizeDBError("insert binding", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit transaction", err)
	}

	s.logger.Info("Stored topology run",
		"run_id", runID.String(), "hosts", len(hosts), "services", len(services))
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	start := time.Now()
	defer func() { s.observe("list_runs", start, err) }()

	query := `
		SELECT id, source, host_count, service_count, created_at
		FROM topology_runs
		ORDER BY created_at DESC
		LIMIT $1`

	runs = make([]Run, 0)
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, sanitizeDBError("list runs", err)
	}
	return runs, nil
}
