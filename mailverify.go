// Package mailverify checks whether an email address is deliverable
// without sending a message. An address runs through a fixed chain of
// stages (input, syntax, domain extraction, disposable domain, A and MX
// records, DNS blacklists, SPF, optionally DKIM, DMARC and an SMTP
// RCPT TO probe). The first failing stage ends the run.
//
// Basic usage:
//
//	outcome, err := mailverify.New().Verify(ctx, "user@example.com")
//
// Tuned pipeline:
//
//	outcome, err := mailverify.New().
//	    WithDNS(mailverify.DNSOptions{Server: "1.1.1.1", Timeout: 3 * time.Second}).
//	    WithSMTP(mailverify.SMTPOptions{
//	        HeloDomain: "myapp.com",
//	        MailFrom:   "verify@myapp.com",
//	    }).
//	    Verify(ctx, "user@example.com")
package mailverify

import (
	"github.com/optimode/mailverify/internal/resolver"
	"github.com/optimode/mailverify/types"
)

// Resolver is the DNS client used by the DNS based stages.
type Resolver = resolver.Resolver

// StageName is a re-export from the types package so that consumers
// don't need to import the types package directly.
type StageName = types.StageName

// StageResult is a re-export.
type StageResult = types.StageResult

// Status is a re-export.
type Status = types.Status

// Stage names re-exported.
const (
	StageInput            = types.StageInput
	StageSyntax           = types.StageSyntax
	StageDomainExtraction = types.StageDomainExtraction
	StageDisposable       = types.StageDisposable
	StageDNS              = types.StageDNS
	StageMX               = types.StageMX
	StageDNSBL            = types.StageDNSBL
	StageSPF              = types.StageSPF
	StageDKIM             = types.StageDKIM
	StageDMARC            = types.StageDMARC
	StageSMTP             = types.StageSMTP
	StageUnknown          = types.StageUnknown
	StageAll              = types.StageAll

	StatusPassed = types.StatusPassed
	StatusFailed = types.StatusFailed
)
