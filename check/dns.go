package check

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/optimode/mailverify/internal/resolver"
	"github.com/optimode/mailverify/types"
)

const (
	dnsFailed = "Email failed to pass dns record validation test."
	mxFailed  = "Email failed to pass mx record validation test."
)

// DNSConfig is shared by the stages that query DNS directly.
type DNSConfig struct {
	Resolver resolver.Resolver
	// Timeout bounds each lookup. A timeout fails the stage.
	Timeout time.Duration
}

func (c DNSConfig) lookupCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// DNSChecker requires the domain to resolve to at least one IPv4 address.
type DNSChecker struct {
	cfg DNSConfig
}

func NewDNSChecker(cfg DNSConfig) *DNSChecker {
	return &DNSChecker{cfg: cfg}
}

func (c *DNSChecker) Name() types.StageName { return types.StageDNS }

func (c *DNSChecker) Check(ctx context.Context, st *State) (string, error) {
	ctx, cancel := c.cfg.lookupCtx(ctx)
	defer cancel()

	addrs, err := c.cfg.Resolver.LookupHost(ctx, st.Email.Domain)
	if err != nil {
		return "", fail(types.StageDNS, types.KindDNS, dnsFailed, err)
	}

	v4 := ipv4Only(addrs)
	if len(v4) == 0 {
		return "", fail(types.StageDNS, types.KindDNS, dnsFailed,
			fmt.Errorf("no A records for %s", st.Email.Domain))
	}
	st.IPv4 = v4
	return fmt.Sprintf("%d A record(s) found", len(v4)), nil
}

// MXChecker requires at least one MX record with a non-empty exchange.
// The usable records, sorted by preference, are kept for later stages.
type MXChecker struct {
	cfg DNSConfig
}

func NewMXChecker(cfg DNSConfig) *MXChecker {
	return &MXChecker{cfg: cfg}
}

func (c *MXChecker) Name() types.StageName { return types.StageMX }

func (c *MXChecker) Check(ctx context.Context, st *State) (string, error) {
	ctx, cancel := c.cfg.lookupCtx(ctx)
	defer cancel()

	records, err := c.cfg.Resolver.LookupMX(ctx, st.Email.Domain)
	if err != nil {
		return "", fail(types.StageMX, types.KindDNS, mxFailed, err)
	}

	usable := make([]*net.MX, 0, len(records))
	for _, mx := range records {
		host := strings.TrimSuffix(strings.TrimSpace(mx.Host), ".")
		if host == "" {
			continue
		}
		usable = append(usable, &net.MX{Host: host, Pref: mx.Pref})
	}
	if len(usable) == 0 {
		return "", fail(types.StageMX, types.KindDNS, mxFailed,
			fmt.Errorf("no usable MX records for %s", st.Email.Domain))
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Pref < usable[j].Pref
	})
	st.MX = usable
	return fmt.Sprintf("%d MX record(s) found, primary %s", len(usable), usable[0].Host), nil
}

func ipv4Only(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			out = append(out, ip.To4().String())
		}
	}
	return out
}
