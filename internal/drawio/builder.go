package drawio

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/anstrom/topodraw/internal/inventory"
)

const (
	header = `<mxGraphModel dx="3924" dy="2527" grid="1" gridSize="10" guides="1" tooltips="1" connect="1" arrows="1" fold="1" page="1" pageScale="1" pageWidth="1169" pageHeight="827" math="0" shadow="0"><root><mxCell id="0"/><mxCell id="1" parent="0"/>`
	footer = `</root></mxGraphModel>`

	// RootParent is the id of the default layer every top-level cell hangs off.
	RootParent = "1"

	groupStyle = "group;border=2px;"
	cellStyle  = "whiteSpace=wrap;html=1;aspect=fixed;fontSize=12;"
)

// Builder accumulates diagram cells in emission order. A Builder is not safe
// for concurrent use.
type Builder struct {
	layout  Layout
	entries []string
	cells   int
	closed  bool
}

// NewBuilder creates a builder holding only the document header.
func NewBuilder(layout Layout) *Builder {
	return &Builder{
		layout:  layout,
		entries: []string{header},
	}
}

// Layout returns the geometry the builder places cells with.
func (b *Builder) Layout() Layout {
	return b.layout
}

// Cells returns the number of cells emitted so far, framing excluded.
func (b *Builder) Cells() int {
	return b.cells
}

// Host emits a host box: group id-0 at origin and one row per item, id-1
// onwards, stacked top to bottom.
func (b *Builder) Host(items []inventory.Item, origin Point, parent, id string) {
	l := b.layout
	group := id + "-0"
	b.group(group, Rect{X: origin.X, Y: origin.Y, Width: l.HostWidth, Height: l.RowHeight * len(items)}, parent)

	for i, item := range items {
		b.cell(id+"-"+strconv.Itoa(i+1),
			Rect{X: 0, Y: l.RowHeight * i, Width: l.HostWidth, Height: l.RowHeight},
			group, item.Label())
	}
}

// Network emits a cluster bound and the boxes of its hosts on a grid, and
// returns the y coordinate below the cluster where the next one may start.
func (b *Builder) Network(hosts [][]inventory.Item, origin Point, parent, id string) int {
	l := b.layout
	height := l.NetworkHeight(len(hosts))

	b.cell("network-"+id+"-bound",
		Rect{X: origin.X, Y: origin.Y, Width: l.NetworkWidth(), Height: height},
		parent, "")

	for i, items := range hosts {
		b.Host(items, l.HostOrigin(origin, i), parent, "network-"+id+"-"+strconv.Itoa(i))
	}

	return origin.Y + 2*l.Padding + height
}

// Service emits a service table: group id-0, a three row header naming the
// service, and one IP and port row per binding.
func (b *Builder) Service(table inventory.ServiceTable, origin Point, parent, id string) {
	l := b.layout
	width := l.IPWidth + l.PortWidth
	headerHeight := 3 * l.RowHeight
	group := id + "-0"

	b.group(group, Rect{X: origin.X, Y: origin.Y, Width: width, Height: l.RowHeight * (len(table.Bindings) + 3)}, parent)
	b.cell("header-"+id+"-0", Rect{X: 0, Y: 0, Width: width, Height: headerHeight}, group, ServiceLabel(table))

	for i, binding := range table.Bindings {
		y := headerHeight + l.RowHeight*i
		n := strconv.Itoa(i + 1)
		b.cell(id+"-"+n+"a", Rect{X: 0, Y: y, Width: l.IPWidth, Height: l.RowHeight}, group, binding.IP)
		b.cell(id+"-"+n+"b", Rect{X: l.IPWidth, Y: y, Width: l.PortWidth, Height: l.RowHeight}, group,
			strconv.Itoa(int(binding.Port)))
	}
}

// ServiceLabel is the header text of a service table.
func ServiceLabel(table inventory.ServiceTable) string {
	return table.Name + "\n(" + table.Product + " " + table.VersionOr("unknown") + ")"
}

// Bytes closes the document and returns it. Further calls return the same
// document.
func (b *Builder) Bytes() []byte {
	if !b.closed {
		b.entries = append(b.entries, footer)
		b.closed = true
	}
	return []byte(strings.Join(b.entries, ""))
}

func (b *Builder) group(id string, geo Rect, parent string) {
	b.entries = append(b.entries,
		`<mxCell id="`+escape(id)+`" value="" style="`+groupStyle+`" parent="`+escape(parent)+
			`" vertex="1" connectable="0">`+geometry(geo)+`</mxCell>`)
	b.cells++
}

func (b *Builder) cell(id string, geo Rect, parent, value string) {
	b.entries = append(b.entries,
		`<mxCell id="`+escape(id)+`" value="`+escape(value)+`" style="`+cellStyle+`" parent="`+escape(parent)+
			`" vertex="1">`+geometry(geo)+`</mxCell>`)
	b.cells++
}

func geometry(r Rect) string {
	return `<mxGeometry x="` + strconv.Itoa(r.X) + `" y="` + strconv.Itoa(r.Y) +
		`" width="` + strconv.Itoa(r.Width) + `" height="` + strconv.Itoa(r.Height) + `" as="geometry"/>`
}

// escape makes s safe inside a double-quoted attribute. Newlines become
// character references so draw.io keeps them.
func escape(s string) string {
	if !strings.ContainsAny(s, "&<>\"'\t\n\r") {
		return s
	}
	var buf bytes.Buffer
	// Writes to a bytes.Buffer never fail.
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
