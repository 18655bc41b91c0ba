package mailverify

import (
	"context"
	"net"
	"time"

	"github.com/optimode/mailverify/internal/smtppool"
)

// DNSOptions configures the DNS client shared by all DNS based stages.
type DNSOptions struct {
	// Resolver overrides the DNS client entirely. Server is ignored when set.
	Resolver Resolver
	// Server is a "host" or "host:port" DNS server queried directly.
	// Default: empty, the system resolver is used.
	Server string
	// Timeout bounds each lookup. Default: 5s
	Timeout time.Duration
	// CacheTTL enables a lookup cache shared by all runs of the Verifier.
	// Default: 0 (disabled)
	CacheTTL time.Duration
}

func defaultDNSOptions() DNSOptions {
	return DNSOptions{Timeout: 5 * time.Second}
}

// DomainOptions configures the disposable domain stage.
type DomainOptions struct {
	// ExtraDisposable is merged with the built-in disposable domain list.
	ExtraDisposable []string
	// CheckTypos when true suggests corrections for close-match domains. Default: true
	// This never fails an address, only sets Outcome.Suggestion.
	CheckTypos bool
	// TypoThreshold is the Levenshtein distance threshold for typo detection. Default: 2
	TypoThreshold int
}

func defaultDomainOptions() DomainOptions {
	return DomainOptions{
		CheckTypos:    true,
		TypoThreshold: 2,
	}
}

// DNSBLOptions configures the blacklist stage.
type DNSBLOptions struct {
	// Zones replaces the default blacklist zones when non-empty.
	Zones []string
	// Budget bounds the whole blacklist probe of one address. Default: 10s
	Budget time.Duration
}

func defaultDNSBLOptions() DNSBLOptions {
	return DNSBLOptions{Budget: 10 * time.Second}
}

// PolicyOptions configures the SPF, DKIM and DMARC stages.
type PolicyOptions struct {
	// DKIM adds the dkimValidation stage between SPF and DMARC. Default: false
	DKIM bool
	// DKIMSelectors are tried in order. Default: "default"
	DKIMSelectors []string
}

// SMTPOptions configures the mailbox probe.
type SMTPOptions struct {
	// HeloDomain is the domain sent in the EHLO command. Required, e.g. "myapp.com"
	HeloDomain string
	// MailFrom is the address sent in the MAIL FROM command. Required, e.g. "verify@myapp.com"
	MailFrom string
	// Timeout bounds the whole SMTP session. Default: 3s
	Timeout time.Duration
	// Port is the SMTP port. Default: 25
	Port string
	// MaxMXHosts is how many MX hosts may be tried when the previous one
	// gives no answer. Default: 1
	MaxMXHosts int
	// MaxSessionsPerHost bounds concurrent sessions towards one MX host
	// across all verifications of this Verifier. Default: 3
	MaxSessionsPerHost int
	// Dialer overrides how connections are opened.
	Dialer func(ctx context.Context, network, addr string) (net.Conn, error)
}

func defaultSMTPOptions() SMTPOptions {
	return SMTPOptions{
		HeloDomain: "localhost",
		MailFrom:   "verify@localhost",
		Timeout:    3 * time.Second,
		Port:       "25",
		MaxMXHosts: 1,

		MaxSessionsPerHost: smtppool.DefaultMaxPerHost,
	}
}

// ConcurrencyOptions configures VerifyMany and BatchRunner.
type ConcurrencyOptions struct {
	// Width is the number of addresses verified concurrently in one window.
	// Default: 10
	Width int
}

func defaultConcurrencyOptions() ConcurrencyOptions {
	return ConcurrencyOptions{Width: 10}
}
