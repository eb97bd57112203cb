package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/report"
)

func strPtr(s string) *string {
	return &s
}

func ipv4(v string) report.Address {
	return report.Address{Value: v, Family: report.FamilyIPv4}
}

func mac(v string) report.Address {
	return report.Address{Value: v, Family: report.FamilyMAC}
}

func sshService(version string) *report.Service {
	return &report.Service{
		Name:      strPtr("ssh"),
		Product:   strPtr("OpenSSH"),
		Version:   strPtr(version),
		ExtraInfo: strPtr("Ubuntu Linux; protocol 2.0"),
	}
}

func sshHost(addr report.Address, version string) report.Host {
	return report.Host{
		Addresses: []report.Address{addr},
		Ports:     []report.Port{{Protocol: "tcp", Number: 22, Service: sshService(version)}},
	}
}

func TestProject(t *testing.T) {
	host := report.Host{
		Hostnames: []string{"web.lan", "web"},
		Addresses: []report.Address{
			ipv4("10.0.0.1"),
			{Value: "fe80::1", Family: report.FamilyIPv6},
			mac("00:11:22:33:44:55"),
		},
		Ports: []report.Port{
			{Protocol: "tcp", Number: 80, Service: &report.Service{Name: strPtr("http")}},
			{Protocol: "tcp", Number: 8080},
			{Protocol: "udp", Number: 161, Service: &report.Service{Product: strPtr("net-snmp")}},
		},
		OS: strPtr("Linux"),
	}

	var labels []string
	for _, item := range Project(host) {
		labels = append(labels, item.Label())
	}

	assert.Equal(t, []string{
		"web.lan",
		"web",
		"IPv4: 10.0.0.1",
		"IPv6: fe80::1",
		"MAC: 00:11:22:33:44:55",
		"80/tcp http",
		"8080/tcp unknown",
		"161/udp unknown",
		"OS: Linux",
	}, labels)
}

func TestProject_EmptyHost(t *testing.T) {
	items := Project(report.Host{})
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestProject_Kinds(t *testing.T) {
	items := Project(report.Host{
		Addresses: []report.Address{mac("aa:bb:cc:dd:ee:ff")},
		OS:        strPtr("Windows"),
	})

	require.Len(t, items, 2)
	assert.Equal(t, KindMAC, items[0].Kind)
	assert.Equal(t, KindOS, items[1].Kind)
	assert.Equal(t, "os", items[1].Kind.String())
}

func TestGroup_Ordering(t *testing.T) {
	hops := func(n int, name string) report.Host {
		h := report.Host{Hostnames: []string{name}}
		for i := 0; i < n; i++ {
			h.Hops = append(h.Hops, "10.0.0.254")
		}
		return h
	}

	clusters := Group([]report.Host{hops(2, "a"), hops(0, "b"), hops(1, "c"), hops(0, "d")})

	require.Len(t, clusters, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{clusters[0].Distance, clusters[1].Distance, clusters[2].Distance})

	require.Len(t, clusters[0].Hosts, 2)
	assert.Equal(t, "b", clusters[0].Hosts[0].Hostnames[0])
	assert.Equal(t, "d", clusters[0].Hosts[1].Hostnames[0])
	assert.Equal(t, "c", clusters[1].Hosts[0].Hostnames[0])
	assert.Equal(t, "a", clusters[2].Hosts[0].Hostnames[0])
}

func TestGroup_Empty(t *testing.T) {
	assert.Empty(t, Group(nil))
}

func TestTables_MergesIdenticalFingerprints(t *testing.T) {
	tables, err := Aggregate([]report.Host{
		sshHost(ipv4("10.0.0.1"), "8.2"),
		sshHost(ipv4("10.0.0.2"), "8.2"),
		sshHost(ipv4("10.0.0.3"), "9.0"),
	}, false)
	require.NoError(t, err)

	require.Len(t, tables.Services, 2)
	assert.Equal(t, []Binding{{IP: "10.0.0.1", Port: 22}, {IP: "10.0.0.2", Port: 22}}, tables.Services[0].Bindings)
	assert.Equal(t, "8.2", tables.Services[0].VersionOr("unknown"))
	assert.Equal(t, []Binding{{IP: "10.0.0.3", Port: 22}}, tables.Services[1].Bindings)
	assert.Equal(t, "9.0", *tables.Services[1].Version)
}

func TestTables_MACAddressesNeverBind(t *testing.T) {
	tables := NewTables(false)

	require.NoError(t, tables.AddHost(sshHost(mac("00:11:22:33:44:55"), "8.2")))

	require.Len(t, tables.Services, 1, "the service is still recorded")
	assert.Empty(t, tables.Services[0].Bindings)
}

func TestTables_OneBindingPerReachableAddress(t *testing.T) {
	host := report.Host{
		Addresses: []report.Address{ipv4("10.0.0.1"), mac("00:11:22:33:44:55"), {Value: "fe80::1", Family: report.FamilyIPv6}},
		Ports:     []report.Port{{Protocol: "tcp", Number: 443, Service: &report.Service{Name: strPtr("https"), Product: strPtr("nginx")}}},
	}

	tables := NewTables(false)
	require.NoError(t, tables.AddHost(host))

	assert.Equal(t, []Binding{{IP: "10.0.0.1", Port: 443}, {IP: "fe80::1", Port: 443}}, tables.Services[0].Bindings)
	assert.Nil(t, tables.Services[0].Version)
	assert.Equal(t, "unknown", tables.Services[0].VersionOr("unknown"))
}

func TestTables_PortsWithoutServiceAreIgnored(t *testing.T) {
	tables := NewTables(false)
	require.NoError(t, tables.AddHost(report.Host{
		Addresses: []report.Address{ipv4("10.0.0.1")},
		Ports:     []report.Port{{Protocol: "tcp", Number: 8080}},
	}))
	assert.Empty(t, tables.Services)
}

func TestTables_AbsentFieldsOnlyMatchAbsent(t *testing.T) {
	withExtra := &report.Service{Name: strPtr("http"), Product: strPtr("nginx"), ExtraInfo: strPtr("")}
	without := &report.Service{Name: strPtr("http"), Product: strPtr("nginx")}

	tables := NewTables(false)
	require.NoError(t, tables.AddHost(report.Host{
		Addresses: []report.Address{ipv4("10.0.0.1")},
		Ports: []report.Port{
			{Protocol: "tcp", Number: 80, Service: withExtra},
			{Protocol: "tcp", Number: 8080, Service: without},
		},
	}))

	assert.Len(t, tables.Services, 2)
}

func TestTables_IncompleteService(t *testing.T) {
	hosts := []report.Host{
		sshHost(ipv4("10.0.0.1"), "8.2"),
		{
			Addresses: []report.Address{ipv4("10.0.0.2")},
			Ports:     []report.Port{{Protocol: "tcp", Number: 9000, Service: &report.Service{Name: strPtr("cslistener")}}},
		},
	}

	t.Run("fatal by default", func(t *testing.T) {
		tables, err := Aggregate(hosts, false)
		require.Error(t, err)
		assert.Nil(t, tables)
		assert.True(t, errors.IsCode(err, errors.CodeMalformedRecord))

		var recErr *errors.RecordError
		require.ErrorAs(t, err, &recErr)
		assert.Equal(t, 1, recErr.HostIndex)
		assert.Equal(t, "service", recErr.Element)
		assert.Equal(t, "product", recErr.Attribute)
	})

	t.Run("skipped when configured", func(t *testing.T) {
		tables, err := Aggregate(hosts, true)
		require.NoError(t, err)
		assert.Len(t, tables.Services, 1)
		assert.Equal(t, 1, tables.Skipped())
	})
}
