package report

import (
	"io"
	"strconv"

	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/metrics"
)

// Element names of the nmap XML schema that the parser follows.
const (
	elemReport    = "nmaprun"
	elemHost      = "host"
	elemAddress   = "address"
	elemHostnames = "hostnames"
	elemHostname  = "hostname"
	elemPorts     = "ports"
	elemPort      = "port"
	elemService   = "service"
	elemTrace     = "trace"
	elemHop       = "hop"
)

// State is a parser state.
type State int

const (
	StateIgnoring State = iota
	StateAwaitingHost
	StateInHost
	StateInHostnames
	StateInPorts
	StateInPort
	StateInTrace
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIgnoring:
		return "ignoring"
	case StateAwaitingHost:
		return "awaiting_host"
	case StateInHost:
		return "in_host"
	case StateInHostnames:
		return "in_hostnames"
	case StateInPorts:
		return "in_ports"
	case StateInPort:
		return "in_port"
	case StateInTrace:
		return "in_trace"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is the accumulator threaded through Step: the host under
// construction, the port under construction (only in StateInPort) and the
// index the current host will have in the result.
type Progress struct {
	Host      Host
	Port      *Port
	HostIndex int
}

// Step is the parser's transition function. It returns the next state, the
// updated accumulator and, on host close, the completed host. An event with
// no transition from state yields the unchanged state and accumulator
// together with a non-fatal UNEXPECTED_EVENT error; any other error is
// fatal.
func Step(state State, cur Progress, ev Event) (State, Progress, *Host, error) {
	switch state {
	case StateIgnoring:
		if ev.Kind == EventOpen && ev.Name == elemReport {
			return StateAwaitingHost, cur, nil, nil
		}

	case StateAwaitingHost:
		switch {
		case ev.Kind == EventOpen && ev.Name == elemHost:
			cur.Host = Host{}
			cur.Port = nil
			return StateInHost, cur, nil, nil
		case ev.Kind == EventEmpty && ev.Name == elemHost:
			host := Host{}
			cur.Host = Host{}
			cur.Port = nil
			cur.HostIndex++
			return StateAwaitingHost, cur, &host, nil
		case ev.Kind == EventClose && ev.Name == elemReport:
			return StateDone, cur, nil, nil
		}

	case StateInHost:
		switch {
		case isLeaf(ev) && ev.Name == elemAddress:
			addr, err := parseAddress(cur.HostIndex, ev)
			if err != nil {
				return state, cur, nil, err
			}
			cur.Host.Addresses = append(cur.Host.Addresses, addr)
			return StateInHost, cur, nil, nil
		case ev.Kind == EventOpen && ev.Name == elemHostnames:
			return StateInHostnames, cur, nil, nil
		case ev.Kind == EventOpen && ev.Name == elemPorts:
			return StateInPorts, cur, nil, nil
		case ev.Kind == EventOpen && ev.Name == elemTrace:
			return StateInTrace, cur, nil, nil
		case ev.Kind == EventClose && ev.Name == elemHost:
			host := cur.Host
			cur.Host = Host{}
			cur.HostIndex++
			return StateAwaitingHost, cur, &host, nil
		}

	case StateInHostnames:
		switch {
		case isLeaf(ev) && ev.Name == elemHostname:
			name, err := requireAttr(cur.HostIndex, ev, "name")
			if err != nil {
				return state, cur, nil, err
			}
			cur.Host.Hostnames = append(cur.Host.Hostnames, name)
			return StateInHostnames, cur, nil, nil
		case ev.Kind == EventClose && ev.Name == elemHostnames:
			return StateInHost, cur, nil, nil
		}

	case StateInPorts:
		switch {
		case ev.Kind == EventOpen && ev.Name == elemPort:
			port, err := parsePort(cur.HostIndex, ev)
			if err != nil {
				return state, cur, nil, err
			}
			cur.Port = &port
			return StateInPort, cur, nil, nil
		case ev.Kind == EventEmpty && ev.Name == elemPort:
			port, err := parsePort(cur.HostIndex, ev)
			if err != nil {
				return state, cur, nil, err
			}
			cur.Host.Ports = append(cur.Host.Ports, port)
			return StateInPorts, cur, nil, nil
		case ev.Kind == EventClose && ev.Name == elemPorts:
			return StateInHost, cur, nil, nil
		}

	case StateInPort:
		switch {
		case isLeaf(ev) && ev.Name == elemService:
			svc, osType := parseService(ev)
			if osType != nil {
				cur.Host.OS = osType
			}
			port := *cur.Port
			port.Service = svc
			cur.Port = &port
			return StateInPort, cur, nil, nil
		case ev.Kind == EventClose && ev.Name == elemPort:
			cur.Host.Ports = append(cur.Host.Ports, *cur.Port)
			cur.Port = nil
			return StateInPorts, cur, nil, nil
		}

	case StateInTrace:
		switch {
		case isLeaf(ev) && ev.Name == elemHop:
			hop, err := requireAttr(cur.HostIndex, ev, "ipaddr")
			if err != nil {
				return state, cur, nil, err
			}
			cur.Host.Hops = append(cur.Host.Hops, hop)
			return StateInTrace, cur, nil, nil
		case ev.Kind == EventClose && ev.Name == elemTrace:
			return StateInHost, cur, nil, nil
		}

	case StateDone:
		return StateDone, cur, nil, nil
	}

	return state, cur, nil, errors.NewRecordError(errors.CodeUnexpectedEvent,
		"no transition for "+ev.Kind.String()+" event in state "+state.String(), hostIndexIn(state, cur), ev.Name)
}

// isLeaf accepts both spellings of an element without modelled children.
func isLeaf(ev Event) bool {
	return ev.Kind == EventEmpty || ev.Kind == EventOpen
}

func hostIndexIn(state State, cur Progress) int {
	switch state {
	case StateIgnoring, StateAwaitingHost, StateDone:
		return -1
	default:
		return cur.HostIndex
	}
}

func requireAttr(hostIndex int, ev Event, attr string) (string, error) {
	v, ok := ev.Attr(attr)
	if !ok {
		return "", errors.ErrMissingAttribute(hostIndex, ev.Name, attr)
	}
	return v, nil
}

func parseAddress(hostIndex int, ev Event) (Address, error) {
	addr, err := requireAttr(hostIndex, ev, "addr")
	if err != nil {
		return Address{}, err
	}
	addrType, err := requireAttr(hostIndex, ev, "addrtype")
	if err != nil {
		return Address{}, err
	}
	family, ok := parseAddrFamily(addrType)
	if !ok {
		return Address{}, errors.ErrInvalidAttribute(hostIndex, ev.Name, "addrtype", addrType, nil)
	}
	return Address{Value: addr, Family: family}, nil
}

func parsePort(hostIndex int, ev Event) (Port, error) {
	protocol, err := requireAttr(hostIndex, ev, "protocol")
	if err != nil {
		return Port{}, err
	}
	portID, err := requireAttr(hostIndex, ev, "portid")
	if err != nil {
		return Port{}, err
	}
	number, err := strconv.ParseUint(portID, 10, 16)
	if err != nil {
		return Port{}, errors.ErrInvalidAttribute(hostIndex, ev.Name, "portid", portID, err)
	}
	return Port{Protocol: protocol, Number: uint16(number)}, nil
}

// parseService reads the service attributes. ostype describes the host, so
// it is returned separately.
func parseService(ev Event) (*Service, *string) {
	svc := &Service{}
	var osType *string
	for _, a := range ev.Attrs {
		v := a.Value
		switch a.Name {
		case "name":
			svc.Name = &v
		case "product":
			svc.Product = &v
		case "version":
			svc.Version = &v
		case "extrainfo":
			svc.ExtraInfo = &v
		case "ostype":
			osType = &v
		}
	}
	return svc, osType
}

// Parser drives Step over an event source.
type Parser struct {
	logger   *logging.Logger
	recorder metrics.Recorder
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Parser) {
		p.recorder = r
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		logger:   logging.Default(),
		recorder: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse consumes src until the report closes or the input ends and returns
// the hosts in document order. On error no hosts are returned.
func (p *Parser) Parse(src EventSource) ([]Host, error) {
	state := StateIgnoring
	cur := Progress{}
	hosts := make([]Host, 0)
	unexpected := 0

	for state != StateDone {
		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			recErr := errors.WrapRecordError(errors.CodeSourceUnavailable, "cannot read scan report", err)
			recErr.HostIndex = hostIndexIn(state, cur)
			return nil, recErr
		}

		next, updated, host, err := Step(state, cur, ev)
		if err != nil {
			if errors.IsFatal(err) {
				return nil, err
			}
			unexpected++
			p.recorder.IncUnexpectedEvents(state.String())
			p.logger.Debug("Ignoring event", "state", state.String(), "kind", ev.Kind.String(), "element", ev.Name)
			continue
		}
		if host != nil {
			hosts = append(hosts, *host)
		}
		state, cur = next, updated
	}

	if state != StateDone {
		p.logger.Warn("Scan report ended before the report element closed",
			"state", state.String(), "hosts", len(hosts))
	}

	p.recorder.AddHostsParsed(len(hosts))
	p.logger.Debug("Parsed scan report", "hosts", len(hosts), "ignored_events", unexpected)
	return hosts, nil
}
