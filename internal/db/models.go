package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/anstrom/topodraw/internal/inventory"
	"github.com/anstrom/topodraw/internal/report"
)

// Run is one rendered scan report.
type Run struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Source       string    `db:"source" json:"source"`
	HostCount    int       `db:"host_count" json:"host_count"`
	ServiceCount int       `db:"service_count" json:"service_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HostRecord is a host as stored for a run.
type HostRecord struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	RunID          uuid.UUID      `db:"run_id" json:"run_id"`
	HostIndex      int            `db:"host_index" json:"host_index"`
	PrimaryAddress string         `db:"primary_address" json:"primary_address"`
	Hostnames      pq.StringArray `db:"hostnames" json:"hostnames"`
	Addresses      pq.StringArray `db:"addresses" json:"addresses"`
	OS             sql.NullString `db:"os" json:"os"`
	Distance       int            `db:"distance" json:"distance"`
}

// ServiceRecord is a service table as stored for a run.
type ServiceRecord struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	RunID      uuid.UUID      `db:"run_id" json:"run_id"`
	TableIndex int            `db:"table_index" json:"table_index"`
	Name       string         `db:"name" json:"name"`
	Product    string         `db:"product" json:"product"`
	Version    sql.NullString `db:"version" json:"version"`
	ExtraInfo  sql.NullString `db:"extra_info" json:"extra_info"`
}

// BindingRecord is one row of a stored service table.
type BindingRecord struct {
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	Position  int       `db:"position" json:"position"`
	IP        string    `db:"ip" json:"ip"`
	Port      int       `db:"port" json:"port"`
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// NewHostRecord converts a parsed host.
func NewHostRecord(runID uuid.UUID, index int, h report.Host) HostRecord {
	addresses := make(pq.StringArray, len(h.Addresses))
	for i, a := range h.Addresses {
		addresses[i] = a.Value
	}
	hostnames := pq.StringArray(h.Hostnames)
	if hostnames == nil {
		hostnames = pq.StringArray{}
	}
	return HostRecord{
		ID:             uuid.New(),
		RunID:          runID,
		HostIndex:      index,
		PrimaryAddress: h.PrimaryAddress(),
		Hostnames:      hostnames,
		Addresses:      addresses,
		OS:             nullString(h.OS),
		Distance:       h.Distance(),
	}
}

// NewServiceRecord converts a service table.
func NewServiceRecord(runID uuid.UUID, index int, t inventory.ServiceTable) ServiceRecord {
	return ServiceRecord{
		ID:         uuid.New(),
		RunID:      runID,
		TableIndex: index,
		Name:       t.Name,
		Product:    t.Product,
		Version:    nullString(t.Version),
		ExtraInfo:  nullString(t.ExtraInfo),
	}
}
