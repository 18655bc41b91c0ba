// Package resolver defines the DNS lookups used by the verification stages
// and provides a miekg/dns based client for talking to a specific server.
package resolver

import (
	"context"
	"errors"
	"net"
	"time"
)

// Resolver is the subset of net.Resolver the stages depend on. It is
// implemented by net.DefaultResolver, *Client and the go-mockdns resolver
// used in tests. Methods behave like their net.Resolver counterparts; in
// particular a missing name yields a *net.DNSError with IsNotFound set.
type Resolver interface {
	LookupHost(ctx context.Context, host string) (addrs []string, err error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// New returns the system resolver when server is empty, otherwise a Client
// that sends queries to server ("host" or "host:port").
func New(server string, timeout time.Duration) (Resolver, error) {
	if server == "" {
		return net.DefaultResolver, nil
	}
	return NewClient([]string{server}, timeout)
}

// IsNotFound reports whether err means the queried name has no records.
func IsNotFound(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound
	}
	return false
}

// IsTimeout reports whether err is a lookup deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
