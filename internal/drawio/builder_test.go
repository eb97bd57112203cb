package drawio

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/topodraw/internal/inventory"
)

func strPtr(s string) *string {
	return &s
}

// body strips the framing from a finished document.
func body(t *testing.T, doc []byte) string {
	t.Helper()
	s := string(doc)
	require.True(t, strings.HasPrefix(s, header), "missing header")
	require.True(t, strings.HasSuffix(s, footer), "missing footer")
	return strings.TrimSuffix(strings.TrimPrefix(s, header), footer)
}

type mxDoc struct {
	Cells []mxCell `xml:"root>mxCell"`
}

type mxCell struct {
	ID       string     `xml:"id,attr"`
	Value    string     `xml:"value,attr"`
	Parent   string     `xml:"parent,attr"`
	Geometry mxGeometry `xml:"mxGeometry"`
}

type mxGeometry struct {
	X      int `xml:"x,attr"`
	Y      int `xml:"y,attr"`
	Width  int `xml:"width,attr"`
	Height int `xml:"height,attr"`
}

func decode(t *testing.T, doc []byte) map[string]mxCell {
	t.Helper()
	var d mxDoc
	require.NoError(t, xml.Unmarshal(doc, &d))
	cells := make(map[string]mxCell, len(d.Cells))
	for _, c := range d.Cells {
		_, dup := cells[c.ID]
		require.False(t, dup, "duplicate cell id %s", c.ID)
		cells[c.ID] = c
	}
	return cells
}

func hostItems(n int) [][]inventory.Item {
	hosts := make([][]inventory.Item, n)
	for i := range hosts {
		hosts[i] = []inventory.Item{{Kind: inventory.KindIPv4, Value: "10.0.0.1"}}
	}
	return hosts
}

func TestEmptyDocument(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	assert.Equal(t, header+footer, string(b.Bytes()))
	assert.Equal(t, 0, b.Cells())
}

func TestBytesClosesOnce(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	first := b.Bytes()
	second := b.Bytes()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, strings.Count(string(second), footer))
}

func TestHostMarkup(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	b.Host([]inventory.Item{
		{Kind: inventory.KindFriendlyName, Value: "gw"},
		{Kind: inventory.KindPort, Port: 22, Protocol: "tcp", Service: "ssh"},
	}, Point{X: 20, Y: 20}, RootParent, "h")

	want := `<mxCell id="h-0" value="" style="group;border=2px;" parent="1" vertex="1" connectable="0">` +
		`<mxGeometry x="20" y="20" width="150" height="40" as="geometry"/></mxCell>` +
		`<mxCell id="h-1" value="gw" style="whiteSpace=wrap;html=1;aspect=fixed;fontSize=12;" parent="h-0" vertex="1">` +
		`<mxGeometry x="0" y="0" width="150" height="20" as="geometry"/></mxCell>` +
		`<mxCell id="h-2" value="22/tcp ssh" style="whiteSpace=wrap;html=1;aspect=fixed;fontSize=12;" parent="h-0" vertex="1">` +
		`<mxGeometry x="0" y="20" width="150" height="20" as="geometry"/></mxCell>`

	assert.Equal(t, want, body(t, b.Bytes()))
	assert.Equal(t, 3, b.Cells())
}

func TestNetworkLayoutArithmetic(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	next := b.Network(hostItems(9), Point{X: 10, Y: 10}, RootParent, "network-0")

	cells := decode(t, b.Bytes())

	bound, ok := cells["network-network-0-bound"]
	require.True(t, ok)
	assert.Equal(t, mxGeometry{X: 10, Y: 10, Width: 8*(150+10) + 10, Height: (9/8 + 1) * 10 * 20}, bound.Geometry)
	assert.Equal(t, RootParent, bound.Parent)

	first := cells["network-network-0-0-0"]
	assert.Equal(t, 20, first.Geometry.X)
	assert.Equal(t, 20, first.Geometry.Y)

	eighth := cells["network-network-0-7-0"]
	assert.Equal(t, 10+10+7*160, eighth.Geometry.X)
	assert.Equal(t, 20, eighth.Geometry.Y)

	ninth := cells["network-network-0-8-0"]
	assert.Equal(t, 20, ninth.Geometry.X, "index 8 wraps to column 0")
	assert.Equal(t, 20+200, ninth.Geometry.Y, "index 8 is on row 1")
	assert.Equal(t, RootParent, ninth.Parent, "host groups hang off the layer, not the bound")

	assert.Equal(t, 10+20+400, next)
}

func TestNetworkHeightReservesSpareRow(t *testing.T) {
	l := DefaultLayout()
	assert.Equal(t, 200, l.NetworkHeight(0))
	assert.Equal(t, 200, l.NetworkHeight(7))
	assert.Equal(t, 400, l.NetworkHeight(8))
	assert.Equal(t, 400, l.NetworkHeight(9))
	assert.Equal(t, 1290, l.NetworkWidth())
}

func TestServiceMarkup(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	b.Service(inventory.ServiceTable{
		Name:     "ssh",
		Product:  "OpenSSH",
		Version:  strPtr("8.2"),
		Bindings: []inventory.Binding{{IP: "10.0.0.1", Port: 22}, {IP: "10.0.0.2", Port: 2222}},
	}, Point{X: 1180, Y: 20}, RootParent, "table2")

	cells := decode(t, b.Bytes())
	require.Len(t, cells, 2+6)

	assert.Equal(t, mxGeometry{X: 1180, Y: 20, Width: 150, Height: 100}, cells["table2-0"].Geometry)

	hdr := cells["header-table2-0"]
	assert.Equal(t, "ssh\n(OpenSSH 8.2)", hdr.Value)
	assert.Equal(t, "table2-0", hdr.Parent)
	assert.Equal(t, mxGeometry{Width: 150, Height: 60}, hdr.Geometry)

	assert.Equal(t, "10.0.0.2", cells["table2-2a"].Value)
	assert.Equal(t, mxGeometry{X: 0, Y: 80, Width: 100, Height: 20}, cells["table2-2a"].Geometry)
	assert.Equal(t, "2222", cells["table2-2b"].Value)
	assert.Equal(t, mxGeometry{X: 100, Y: 80, Width: 50, Height: 20}, cells["table2-2b"].Geometry)
}

func TestServiceLabelUnknownVersion(t *testing.T) {
	assert.Equal(t, "http\n(lighttpd unknown)", ServiceLabel(inventory.ServiceTable{Name: "http", Product: "lighttpd"}))
}

func TestLabelsAreEscaped(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	b.Host([]inventory.Item{{Kind: inventory.KindFriendlyName, Value: `a<b>&"c"`}}, Point{}, RootParent, "h")

	out := string(b.Bytes())
	assert.Contains(t, out, `value="a&lt;b&gt;&amp;&#34;c&#34;"`)

	cells := decode(t, []byte(out))
	assert.Equal(t, `a<b>&"c"`, cells["h-1"].Value)
}

func TestHeaderNewlineSurvivesRoundTrip(t *testing.T) {
	b := NewBuilder(DefaultLayout())
	b.Service(inventory.ServiceTable{Name: "ssh", Product: "OpenSSH"}, Point{}, RootParent, "t")

	out := b.Bytes()
	assert.Contains(t, string(out), `value="ssh&#xA;(OpenSSH unknown)"`)
	assert.Equal(t, "ssh\n(OpenSSH unknown)", decode(t, out)["header-t-0"].Value)
}

func TestTableOrigin(t *testing.T) {
	l := DefaultLayout()
	assert.Equal(t, Point{X: 1000 + 3*180, Y: 20}, l.TableOrigin(3))
}
