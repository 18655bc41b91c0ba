package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// RCodeError is returned by Client when a server answers with an RCODE
// other than NOERROR or NXDOMAIN.
type RCodeError struct {
	Name string
	Code int
}

func (err RCodeError) Temporary() bool {
	return err.Code == dns.RcodeServerFailure
}

func (err RCodeError) Error() string {
	name, ok := dns.RcodeToString[err.Code]
	if !ok {
		name = strconv.Itoa(err.Code)
	}
	return "dns: rcode " + name + " when looking up " + err.Name
}

// Client resolves names by querying a fixed list of servers directly,
// bypassing the system resolver configuration. Servers are tried in order
// until one produces an authoritative answer (NOERROR or NXDOMAIN).
type Client struct {
	udp     *dns.Client
	tcp     *dns.Client
	servers []string
}

// NewClient returns a Client for servers given as "host" or "host:port";
// port 53 is assumed when missing. timeout bounds every single exchange.
func NewClient(servers []string, timeout time.Duration) (*Client, error) {
	if len(servers) == 0 {
		return nil, errors.New("resolver: no DNS servers configured")
	}

	addrs := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		addrs = append(addrs, s)
	}
	if len(addrs) == 0 {
		return nil, errors.New("resolver: no DNS servers configured")
	}

	return &Client{
		udp:     &dns.Client{Net: "udp", Timeout: timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: timeout},
		servers: addrs,
	}, nil
}

func (c *Client) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.SetEdns0(4096, false)

	var lastErr error
	for _, srv := range c.servers {
		resp, _, err := c.udp.ExchangeContext(ctx, msg, srv)
		if err == nil && resp.Truncated {
			resp, _, err = c.tcp.ExchangeContext(ctx, msg, srv)
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			return resp, nil
		case dns.RcodeNameError:
			return nil, notFound(name, srv)
		default:
			lastErr = RCodeError{Name: name, Code: resp.Rcode}
		}
	}
	return nil, fmt.Errorf("lookup %s: %w", name, lastErr)
}

func notFound(name, server string) error {
	return &net.DNSError{
		Err:        "no such host",
		Name:       name,
		Server:     server,
		IsNotFound: true,
	}
}

// LookupHost returns the IPv4 and IPv6 addresses of host, IPv4 first.
func (c *Client) LookupHost(ctx context.Context, host string) ([]string, error) {
	var (
		addrs  []string
		errs   []error
		absent int
	)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := c.exchange(ctx, host, qtype)
		if err != nil {
			if IsNotFound(err) {
				absent++
			} else {
				errs = append(errs, err)
			}
			continue
		}
		for _, rr := range resp.Answer {
			switch rr := rr.(type) {
			case *dns.A:
				addrs = append(addrs, rr.A.String())
			case *dns.AAAA:
				addrs = append(addrs, rr.AAAA.String())
			}
		}
	}

	if len(addrs) > 0 {
		return addrs, nil
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return nil, notFound(host, "")
}

// LookupMX returns the MX records of name in the order received.
func (c *Client) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	resp, err := c.exchange(ctx, name, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	mxs := make([]*net.MX, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		mxRR, ok := rr.(*dns.MX)
		if !ok {
			continue
		}
		mxs = append(mxs, &net.MX{Host: mxRR.Mx, Pref: mxRR.Preference})
	}
	if len(mxs) == 0 {
		return nil, notFound(name, "")
	}
	return mxs, nil
}

// LookupTXT returns the TXT records of name. Character strings of a single
// record are concatenated.
func (c *Client) LookupTXT(ctx context.Context, name string) ([]string, error) {
	resp, err := c.exchange(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	recs := make([]string, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		txtRR, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		recs = append(recs, strings.Join(txtRR.Txt, ""))
	}
	if len(recs) == 0 {
		return nil, notFound(name, "")
	}
	return recs, nil
}
