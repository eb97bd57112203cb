package report

// AddrFamily classifies a host address.
type AddrFamily int

const (
	FamilyIPv4 AddrFamily = iota
	FamilyIPv6
	FamilyMAC
)

// String returns the nmap addrtype spelling of the family.
func (f AddrFamily) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyMAC:
		return "mac"
	default:
		return "unknown"
	}
}

// parseAddrFamily maps an addrtype attribute to a family. Matching is exact.
func parseAddrFamily(s string) (AddrFamily, bool) {
	switch s {
	case "ipv4":
		return FamilyIPv4, true
	case "ipv6":
		return FamilyIPv6, true
	case "mac":
		return FamilyMAC, true
	default:
		return 0, false
	}
}

// Address is one address reported for a host.
type Address struct {
	Value  string
	Family AddrFamily
}

// Reachable reports whether the address is a network endpoint.
// MAC addresses are link-layer only and never bind services.
func (a Address) Reachable() bool {
	return a.Family != FamilyMAC
}

// Service is the service detection result attached to a port.
// Nil fields were absent from the report.
type Service struct {
	Name      *string
	Product   *string
	Version   *string
	ExtraInfo *string
}

// Port is one port record of a host.
type Port struct {
	Protocol string
	Number   uint16
	Service  *Service
}

// Host is a scanned host as reconstructed from the report.
type Host struct {
	Addresses []Address
	Hostnames []string
	Ports     []Port
	OS        *string
	Hops      []string
}

// Distance is the host's hop count; hosts without trace data are at 0.
func (h Host) Distance() int {
	return len(h.Hops)
}

// PrimaryAddress returns the first reachable address, falling back to the
// first address of any family, or "" when the host has none.
func (h Host) PrimaryAddress() string {
	for _, a := range h.Addresses {
		if a.Reachable() {
			return a.Value
		}
	}
	if len(h.Addresses) > 0 {
		return h.Addresses[0].Value
	}
	return ""
}
