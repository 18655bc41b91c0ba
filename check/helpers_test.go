package check_test

import (
	"context"
	"net"
	"strings"
	"sync/atomic"

	"github.com/foxcpp/go-mockdns"

	"github.com/optimode/mailverify/check"
	"github.com/optimode/mailverify/internal/resolver"
)

// exampleZones describes a domain that passes every DNS based stage.
func exampleZones() map[string]mockdns.Zone {
	return map[string]mockdns.Zone{
		"example.com.": {
			A:   []string{"192.0.2.1"},
			MX:  []net.MX{{Host: "mx.example.com.", Pref: 10}},
			TXT: []string{"v=spf1 mx -all"},
		},
		"_dmarc.example.com.": {
			TXT: []string{"v=DMARC1; p=reject"},
		},
		"default._domainkey.example.com.": {
			TXT: []string{"v=DKIM1; k=rsa; p=MIGf"},
		},
		"mx.example.com.": {
			A: []string{"192.0.2.25"},
		},
	}
}

// countingResolver counts every lookup that reaches it.
type countingResolver struct {
	resolver.Resolver
	calls atomic.Int64
}

func (c *countingResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	c.calls.Add(1)
	return c.Resolver.LookupHost(ctx, host)
}

func (c *countingResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	c.calls.Add(1)
	return c.Resolver.LookupMX(ctx, name)
}

func (c *countingResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	c.calls.Add(1)
	return c.Resolver.LookupTXT(ctx, name)
}

// blacklistResolver answers every query under suffix with a listing and
// forwards everything else.
type blacklistResolver struct {
	resolver.Resolver
	suffix string
	answer []string
	err    error
}

func (b *blacklistResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if strings.HasSuffix(host, b.suffix) {
		return b.answer, b.err
	}
	return b.Resolver.LookupHost(ctx, host)
}

// stateFor returns the State the stages after mxValidation expect.
func stateFor(addr string, mx ...string) *check.State {
	st := &check.State{Raw: addr, Address: addr}
	local, domain, _ := strings.Cut(addr, "@")
	st.Email.Raw = addr
	st.Email.Local = local
	st.Email.Domain = domain
	st.Email.DomainUnicode = domain
	st.Email.Valid = true
	for i, h := range mx {
		st.MX = append(st.MX, &net.MX{Host: h, Pref: uint16(10 * (i + 1))})
	}
	return st
}

func newMockResolver(zones map[string]mockdns.Zone) *mockdns.Resolver {
	return &mockdns.Resolver{Zones: zones}
}
