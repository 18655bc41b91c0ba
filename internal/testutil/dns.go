package testutil

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/foxcpp/go-mockdns"
)

// MXHost is the exchange of every domain set up by Zones.
const MXHost = "mx.example.com"

// Zones returns records under which every domain in domains passes all
// DNS based stages: an A record, an MX pointing at MXHost, SPF and DMARC.
func Zones(domains ...string) map[string]mockdns.Zone {
	zones := map[string]mockdns.Zone{
		MXHost + ".": {A: []string{"192.0.2.25"}},
	}
	for _, d := range domains {
		zones[d+"."] = mockdns.Zone{
			A:   []string{"192.0.2.1"},
			MX:  []net.MX{{Host: MXHost + ".", Pref: 10}},
			TXT: []string{"v=spf1 mx -all"},
		}
		zones["_dmarc."+d+"."] = mockdns.Zone{
			TXT: []string{"v=DMARC1; p=reject"},
		}
	}
	return zones
}

// Resolver is a mockdns resolver that counts lookups and can be told to
// panic for one name.
type Resolver struct {
	mockdns.Resolver
	PanicOn string
	calls   atomic.Int64
}

// NewResolver wraps zones.
func NewResolver(zones map[string]mockdns.Zone) *Resolver {
	return &Resolver{Resolver: mockdns.Resolver{Zones: zones}}
}

// Calls returns the number of lookups made so far.
func (r *Resolver) Calls() int64 {
	return r.calls.Load()
}

func (r *Resolver) hit(name string) {
	r.calls.Add(1)
	if r.PanicOn != "" && name == r.PanicOn {
		panic("testutil: lookup of " + name)
	}
}

func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	r.hit(host)
	return r.Resolver.LookupHost(ctx, host)
}

func (r *Resolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	r.hit(name)
	return r.Resolver.LookupMX(ctx, name)
}

func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	r.hit(name)
	return r.Resolver.LookupTXT(ctx, name)
}
