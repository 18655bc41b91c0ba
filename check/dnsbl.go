package check

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/optimode/mailverify/internal/resolver"
	"github.com/optimode/mailverify/types"
)

// DefaultDNSBLZones are queried when no zones are configured.
var DefaultDNSBLZones = []string{
	"zen.spamhaus.org",
	"b.barracudacentral.org",
	"bl.spamcop.net",
	"dnsbl.sorbs.net",
	"spam.dnsbl.sorbs.net",
	"cbl.abuseat.org",
}

// DNSBLConfig is the reputation stage configuration.
type DNSBLConfig struct {
	Resolver resolver.Resolver
	Zones    []string
	// Budget bounds the whole probe. Queries not issued before it runs
	// out count as inconclusive.
	Budget time.Duration
}

// ListedError identifies the blacklist entry that failed the stage.
type ListedError struct {
	IP     string
	Zone   string
	Reason string
}

func (le ListedError) Error() string {
	if le.Reason == "" {
		return le.IP + " is listed in " + le.Zone
	}
	return le.IP + " is listed in " + le.Zone + ": " + le.Reason
}

// listing is the answer of one zone about one IP. err is set when the
// answer was inconclusive.
type listing struct {
	ip     string
	zone   string
	listed bool
	err    error
}

// ReputationProbe checks the IPv4 addresses of every MX host against the
// configured DNS blacklists.
//
// The lookup polarity is inverted compared to ordinary DNS use: a query
// for {reversed-ip}.{zone} that resolves means the IP is listed. Not-found
// means not listed. Any other error is inconclusive and never counts as a
// listing. The first listing ends the probe.
type ReputationProbe struct {
	cfg DNSBLConfig
}

func NewReputationProbe(cfg DNSBLConfig) *ReputationProbe {
	if len(cfg.Zones) == 0 {
		cfg.Zones = DefaultDNSBLZones
	}
	return &ReputationProbe{cfg: cfg}
}

func (p *ReputationProbe) Name() types.StageName { return types.StageDNSBL }

func (p *ReputationProbe) Check(ctx context.Context, st *State) (string, error) {
	if len(st.MX) == 0 {
		return "no MX hosts to probe", nil
	}

	if p.cfg.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Budget)
		defer cancel()
	}

	var (
		results []listing
		skipped int
	)
probe:
	for _, mx := range st.MX {
		addrs, err := p.cfg.Resolver.LookupHost(ctx, mx.Host)
		if err != nil {
			// A missing backup MX must not fail the domain.
			skipped++
			continue
		}

		for _, ip := range ipv4Only(addrs) {
			for _, zone := range p.cfg.Zones {
				if ctx.Err() != nil {
					break probe
				}

				l := p.query(ctx, ip, zone)
				results = append(results, l)
				if l.listed {
					return "", fail(types.StageDNSBL, types.KindReputation,
						fmt.Sprintf("Email failed DNSBL validation: IP %s is listed in %s.", ip, zone),
						ListedError{IP: ip, Zone: zone, Reason: p.reason(ctx, ip, zone)})
				}
			}
		}
	}

	inconclusive := 0
	for _, l := range results {
		if l.err != nil {
			inconclusive++
		}
	}
	return fmt.Sprintf("%d clean and %d inconclusive DNSBL answers, %d MX host(s) unresolved",
		len(results)-inconclusive, inconclusive, skipped), nil
}

func (p *ReputationProbe) query(ctx context.Context, ip, zone string) listing {
	l := listing{ip: ip, zone: zone}

	addrs, err := p.cfg.Resolver.LookupHost(ctx, reverseIPv4(ip)+"."+zone)
	switch {
	case err == nil:
		l.listed = len(addrs) > 0
	case resolver.IsNotFound(err):
	default:
		l.err = err
	}
	return l
}

// reason fetches the explanation some zones publish in TXT. It is not
// significant; failures are ignored.
func (p *ReputationProbe) reason(ctx context.Context, ip, zone string) string {
	txts, err := p.cfg.Resolver.LookupTXT(ctx, reverseIPv4(ip)+"."+zone)
	if err != nil || len(txts) == 0 {
		return ""
	}
	// Meta lists such as Spamhaus Zen can return several reasons.
	return strings.Join(txts, "; ")
}

// reverseIPv4 turns 192.0.2.1 into 1.2.0.192.
func reverseIPv4(ip string) string {
	v4 := net.ParseIP(ip).To4()
	if v4 == nil {
		return ip
	}

	var b strings.Builder
	b.Grow(15) // 000.000.000.000
	for i := len(v4) - 1; i >= 0; i-- {
		b.WriteString(strconv.Itoa(int(v4[i])))
		if i != 0 {
			b.WriteByte('.')
		}
	}
	return b.String()
}
