// Package resolve looks up PTR records for host addresses that the scan
// report left without a hostname.
package resolve

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/anstrom/topodraw/internal/logging"
)

const (
	defaultTimeout    = 2 * time.Second
	defaultResolvConf = "/etc/resolv.conf"
)

// Resolver sends PTR queries to a single DNS server.
type Resolver struct {
	server string
	client *dns.Client
	logger *logging.Logger
}

// New creates a resolver for server (host:port). An empty server uses the
// first nameserver of /etc/resolv.conf.
func New(server string, timeout time.Duration, logger *logging.Logger) (*Resolver, error) {
	if server == "" {
		conf, err := dns.ClientConfigFromFile(defaultResolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read resolver configuration: %w", err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in %s", defaultResolvConf)
		}
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Resolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
		logger: logger.WithComponent("resolve"),
	}, nil
}

// Server returns the address queries are sent to.
func (r *Resolver) Server() string {
	return r.server
}

// LookupAddr returns the PTR names of addr without the trailing dot.
func (r *Resolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	name, err := dns.ReverseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("cannot reverse %q: %w", addr, err)
	}

	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypePTR)
	msg.RecursionDesired = true

	in, rtt, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("PTR query for %s failed: %w", addr, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("PTR query for %s: %s", addr, dns.RcodeToString[in.Rcode])
	}

	var names []string
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}
	r.logger.Debug("PTR lookup", "addr", addr, "names", names, "rtt", rtt)

	if len(names) == 0 {
		return nil, fmt.Errorf("no PTR record for %s", addr)
	}
	return names, nil
}
