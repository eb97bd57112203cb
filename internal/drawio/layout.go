// Package drawio lays out hosts and service tables on a fixed grid and
// serializes them as a draw.io mxGraphModel document.
package drawio

// Point is a position on the canvas.
type Point struct {
	X int
	Y int
}

// Rect is an absolute cell geometry.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Layout holds the geometry constants of the diagram.
type Layout struct {
	RowHeight      int `yaml:"row_height" json:"row_height" validate:"min=1"`
	HostWidth      int `yaml:"host_width" json:"host_width" validate:"min=1"`
	IPWidth        int `yaml:"ip_width" json:"ip_width" validate:"min=1"`
	PortWidth      int `yaml:"port_width" json:"port_width" validate:"min=1"`
	Padding        int `yaml:"padding" json:"padding" validate:"min=0"`
	Columns        int `yaml:"columns" json:"columns" validate:"min=1"`
	RowsPerHost    int `yaml:"rows_per_host" json:"rows_per_host" validate:"min=1"`
	Margin         int `yaml:"margin" json:"margin" validate:"min=0"`
	ClusterGap     int `yaml:"cluster_gap" json:"cluster_gap" validate:"min=0"`
	ServiceOriginX int `yaml:"service_origin_x" json:"service_origin_x" validate:"min=0"`
	TableGap       int `yaml:"table_gap" json:"table_gap" validate:"min=0"`
}

// DefaultLayout returns the standard geometry.
func DefaultLayout() Layout {
	return Layout{
		RowHeight:      20,
		HostWidth:      150,
		IPWidth:        100,
		PortWidth:      50,
		Padding:        10,
		Columns:        8,
		RowsPerHost:    10,
		Margin:         10,
		ClusterGap:     10,
		ServiceOriginX: 1000,
		TableGap:       30,
	}
}

// NetworkWidth is the width of a cluster's bounding box.
func (l Layout) NetworkWidth() int {
	return l.Columns*(l.HostWidth+l.Padding) + l.Padding
}

// NetworkHeight is the height of a cluster's bounding box for n hosts. The
// grid always reserves one row beyond the filled ones.
func (l Layout) NetworkHeight(n int) int {
	return (n/l.Columns + 1) * l.RowsPerHost * l.RowHeight
}

// HostOrigin is where host i of a cluster at origin is placed, row-major.
func (l Layout) HostOrigin(origin Point, i int) Point {
	return Point{
		X: origin.X + l.Padding + (i%l.Columns)*(l.HostWidth+l.Padding),
		Y: origin.Y + l.Padding + (i/l.Columns)*l.RowsPerHost*l.RowHeight,
	}
}

// TableOrigin is where service table id is placed.
func (l Layout) TableOrigin(id int) Point {
	return Point{
		X: l.ServiceOriginX + id*(l.IPWidth+l.PortWidth+l.TableGap),
		Y: l.RowHeight,
	}
}
