package check

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/optimode/mailverify/types"
)

// TXTRecordChecker passes when a TXT record at the looked-up name starts
// with a fixed tag. SPF, DMARC and DKIM are all variants of it.
type TXTRecordChecker struct {
	cfg     DNSConfig
	stage   types.StageName
	prefix  string
	message string
	names   func(domain string) []string
}

// NewSPFChecker requires a "v=spf1" TXT record on the domain itself.
func NewSPFChecker(cfg DNSConfig) *TXTRecordChecker {
	return &TXTRecordChecker{
		cfg:     cfg,
		stage:   types.StageSPF,
		prefix:  "v=spf1",
		message: "Email failed to pass SPF record validation test.",
		names:   func(domain string) []string { return []string{domain} },
	}
}

// NewDMARCChecker requires a "v=DMARC1" TXT record at _dmarc.{domain}.
func NewDMARCChecker(cfg DNSConfig) *TXTRecordChecker {
	return &TXTRecordChecker{
		cfg:     cfg,
		stage:   types.StageDMARC,
		prefix:  "v=DMARC1",
		message: "Email failed to pass DMARC record validation test.",
		names:   func(domain string) []string { return []string{"_dmarc." + domain} },
	}
}

// DefaultDKIMSelector is tried when no selectors are configured.
const DefaultDKIMSelector = "default"

// providerDKIMSelectors are additionally tried for large providers, whose
// selectors are not guessable from a single default.
var providerDKIMSelectors = []string{
	"default", "google", "google20161025", "google1234567",
	"selector1", "selector2", "k1", "k2", "ctct1", "ctct2",
	"sm", "s1", "s2", "sig1", "litesrv", "zendesk1", "zendesk2",
	"mail", "email", "dkim", "topd",
}

var largeProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// NewDKIMChecker requires a "v=DKIM1" TXT record at
// {selector}._domainkey.{domain} for at least one selector.
func NewDKIMChecker(cfg DNSConfig, selectors []string) *TXTRecordChecker {
	if len(selectors) == 0 {
		selectors = []string{DefaultDKIMSelector}
	}
	return &TXTRecordChecker{
		cfg:     cfg,
		stage:   types.StageDKIM,
		prefix:  "v=DKIM1",
		message: "Email failed to pass DKIM record validation test.",
		names: func(domain string) []string {
			sels := selectors
			if largeProviders[domain] {
				sels = appendUnique(sels, providerDKIMSelectors)
			}
			names := make([]string, 0, len(sels))
			for _, s := range sels {
				names = append(names, s+"._domainkey."+domain)
			}
			return names
		},
	}
}

func (c *TXTRecordChecker) Name() types.StageName { return c.stage }

func (c *TXTRecordChecker) Check(ctx context.Context, st *State) (string, error) {
	var errs []error
	for _, name := range c.names(st.Email.Domain) {
		rec, err := c.lookup(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return fmt.Sprintf("%s record found at %s: %s", c.prefix, name, rec), nil
	}
	return "", fail(c.stage, types.KindPolicy, c.message, errors.Join(errs...))
}

func (c *TXTRecordChecker) lookup(ctx context.Context, name string) (string, error) {
	ctx, cancel := c.cfg.lookupCtx(ctx)
	defer cancel()

	recs, err := c.cfg.Resolver.LookupTXT(ctx, name)
	if err != nil {
		return "", err
	}
	for _, r := range recs {
		if strings.HasPrefix(r, c.prefix) {
			return r, nil
		}
	}
	return "", fmt.Errorf("no %s record at %s", c.prefix, name)
}

func appendUnique(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
