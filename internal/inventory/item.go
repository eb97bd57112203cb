// Package inventory turns parsed hosts into the collections the diagram is
// drawn from: display items per host, clusters by hop distance, and service
// tables shared across hosts.
package inventory

import (
	"strconv"

	"github.com/anstrom/topodraw/internal/report"
)

// unknownService labels a port whose service has no name.
const unknownService = "unknown"

// Kind tags an Item.
type Kind int

const (
	KindFriendlyName Kind = iota
	KindIPv4
	KindIPv6
	KindMAC
	KindPort
	KindOS
)

func (k Kind) String() string {
	switch k {
	case KindFriendlyName:
		return "name"
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindMAC:
		return "mac"
	case KindPort:
		return "port"
	case KindOS:
		return "os"
	default:
		return "unknown"
	}
}

// Item is one row of a host box. Value holds the name, address or OS; the
// port fields are only set for KindPort.
type Item struct {
	Kind     Kind
	Value    string
	Port     uint16
	Protocol string
	Service  string
}

// Label renders the item's display text.
func (i Item) Label() string {
	switch i.Kind {
	case KindIPv4:
		return "IPv4: " + i.Value
	case KindIPv6:
		return "IPv6: " + i.Value
	case KindMAC:
		return "MAC: " + i.Value
	case KindPort:
		return strconv.Itoa(int(i.Port)) + "/" + i.Protocol + " " + i.Service
	case KindOS:
		return "OS: " + i.Value
	default:
		return i.Value
	}
}

// Project lists a host's display items: hostnames, addresses, ports and
// finally the OS when known.
func Project(host report.Host) []Item {
	items := make([]Item, 0, len(host.Hostnames)+len(host.Addresses)+len(host.Ports)+1)

	for _, name := range host.Hostnames {
		items = append(items, Item{Kind: KindFriendlyName, Value: name})
	}

	for _, addr := range host.Addresses {
		items = append(items, Item{Kind: addressKind(addr.Family), Value: addr.Value})
	}

	for _, port := range host.Ports {
		name := unknownService
		if port.Service != nil && port.Service.Name != nil {
			name = *port.Service.Name
		}
		items = append(items, Item{
			Kind:     KindPort,
			Port:     port.Number,
			Protocol: port.Protocol,
			Service:  name,
		})
	}

	if host.OS != nil {
		items = append(items, Item{Kind: KindOS, Value: *host.OS})
	}

	return items
}

func addressKind(f report.AddrFamily) Kind {
	switch f {
	case report.FamilyIPv6:
		return KindIPv6
	case report.FamilyMAC:
		return KindMAC
	default:
		return KindIPv4
	}
}
