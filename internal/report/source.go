package report

import (
	"encoding/xml"
	"io"
)

// EventKind distinguishes the three markup events the parser understands.
type EventKind int

const (
	EventOpen EventKind = iota
	EventClose
	EventEmpty
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Attr is one element attribute.
type Attr struct {
	Name  string
	Value string
}

// Event is a single element event of the report.
type Event struct {
	Kind  EventKind
	Name  string
	Attrs []Attr
}

// Attr looks up an attribute by exact, case-sensitive name.
func (e Event) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Open builds an element-open event.
func Open(name string, attrs ...Attr) Event {
	return Event{Kind: EventOpen, Name: name, Attrs: attrs}
}

// Close builds an element-close event.
func Close(name string) Event {
	return Event{Kind: EventClose, Name: name}
}

// Empty builds a self-closing element event.
func Empty(name string, attrs ...Attr) Event {
	return Event{Kind: EventEmpty, Name: name, Attrs: attrs}
}

// EventSource yields report events in document order. Next returns io.EOF
// once the input is exhausted.
type EventSource interface {
	Next() (Event, error)
}

// XMLSource turns an XML document into element events. Character data,
// comments, processing instructions and directives are skipped. An element
// with no content at all (<a/> or <a></a>) is reported as a single
// EventEmpty.
type XMLSource struct {
	dec     *xml.Decoder
	pending xml.Token
}

// NewXMLSource creates an event source reading XML from r.
func NewXMLSource(r io.Reader) *XMLSource {
	return &XMLSource{dec: xml.NewDecoder(r)}
}

func (s *XMLSource) token() (xml.Token, error) {
	if s.pending != nil {
		tok := s.pending
		s.pending = nil
		return tok, nil
	}
	return s.dec.Token()
}

// Next implements EventSource.
func (s *XMLSource) Next() (Event, error) {
	for {
		tok, err := s.token()
		if err != nil {
			return Event{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			ev := Event{Kind: EventOpen, Name: t.Name.Local, Attrs: convertAttrs(t.Attr)}
			next, err := s.dec.Token()
			if err != nil {
				return Event{}, err
			}
			if end, ok := next.(xml.EndElement); ok && end.Name == t.Name {
				ev.Kind = EventEmpty
				return ev, nil
			}
			s.pending = xml.CopyToken(next)
			return ev, nil
		case xml.EndElement:
			return Event{Kind: EventClose, Name: t.Name.Local}, nil
		}
	}
}

func convertAttrs(in []xml.Attr) []Attr {
	if len(in) == 0 {
		return nil
	}
	out := make([]Attr, len(in))
	for i, a := range in {
		out[i] = Attr{Name: a.Name.Local, Value: a.Value}
	}
	return out
}

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource creates an event source over events.
func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements EventSource.
func (s *SliceSource) Next() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}
