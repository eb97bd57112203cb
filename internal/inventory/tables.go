package inventory

import (
	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/report"
)

// Binding is one address and port where a service was seen.
type Binding struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// ServiceTable collects every binding of one service fingerprint.
type ServiceTable struct {
	Name      string    `json:"name"`
	Product   string    `json:"product"`
	Version   *string   `json:"version,omitempty"`
	ExtraInfo *string   `json:"extra_info,omitempty"`
	Bindings  []Binding `json:"bindings"`
}

// Matches reports whether svc has the table's fingerprint. Absent version or
// extra info only matches absent.
func (t *ServiceTable) Matches(svc report.Service) bool {
	return svc.Name != nil && *svc.Name == t.Name &&
		svc.Product != nil && *svc.Product == t.Product &&
		equalOptional(svc.Version, t.Version) &&
		equalOptional(svc.ExtraInfo, t.ExtraInfo)
}

// VersionOr returns the version, or fallback when it is absent.
func (t *ServiceTable) VersionOr(fallback string) string {
	if t.Version == nil {
		return fallback
	}
	return *t.Version
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Tables aggregates services across hosts, in order of first appearance.
type Tables struct {
	// SkipIncomplete drops services lacking a name or product instead of
	// failing the run.
	SkipIncomplete bool

	Services []ServiceTable

	skipped int
	hosts   int
}

// NewTables creates an empty aggregation.
func NewTables(skipIncomplete bool) *Tables {
	return &Tables{
		SkipIncomplete: skipIncomplete,
		Services:       make([]ServiceTable, 0),
	}
}

// AddHost adds one binding per reachable address of host to the table of
// every port's service, creating tables for new fingerprints. Ports without
// a service are ignored.
func (t *Tables) AddHost(host report.Host) error {
	hostIndex := t.hosts
	t.hosts++

	for _, port := range host.Ports {
		if port.Service == nil {
			continue
		}
		svc := *port.Service

		table := t.find(svc)
		if table == nil {
			if err := checkComplete(hostIndex, svc); err != nil {
				if t.SkipIncomplete {
					t.skipped++
					continue
				}
				return err
			}
			t.Services = append(t.Services, ServiceTable{
				Name:      *svc.Name,
				Product:   *svc.Product,
				Version:   svc.Version,
				ExtraInfo: svc.ExtraInfo,
				Bindings:  make([]Binding, 0),
			})
			table = &t.Services[len(t.Services)-1]
		}

		for _, addr := range host.Addresses {
			if !addr.Reachable() {
				continue
			}
			table.Bindings = append(table.Bindings, Binding{IP: addr.Value, Port: port.Number})
		}
	}
	return nil
}

// Skipped returns how many incomplete services were dropped.
func (t *Tables) Skipped() int {
	return t.skipped
}

func (t *Tables) find(svc report.Service) *ServiceTable {
	for i := range t.Services {
		if t.Services[i].Matches(svc) {
			return &t.Services[i]
		}
	}
	return nil
}

func checkComplete(hostIndex int, svc report.Service) error {
	if svc.Name == nil {
		return errors.ErrMissingAttribute(hostIndex, "service", "name")
	}
	if svc.Product == nil {
		return errors.ErrMissingAttribute(hostIndex, "service", "product")
	}
	return nil
}

// Aggregate builds the service tables of hosts in order.
func Aggregate(hosts []report.Host, skipIncomplete bool) (*Tables, error) {
	t := NewTables(skipIncomplete)
	for _, h := range hosts {
		if err := t.AddHost(h); err != nil {
			return nil, err
		}
	}
	return t, nil
}
