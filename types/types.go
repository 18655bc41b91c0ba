// Package types contains the shared types for mailverify.
// This package does not import anything from other mailverify packages
// to avoid circular imports.
package types

// StageName identifies a verification stage. The same vocabulary is used
// to report where a run failed.
type StageName = string

const (
	StageInput            StageName = "inputValidation"
	StageSyntax           StageName = "syntaxValidation"
	StageDomainExtraction StageName = "domainExtraction"
	StageDisposable       StageName = "disposableDomainValidation"
	StageDNS              StageName = "dnsValidation"
	StageMX               StageName = "mxValidation"
	StageDNSBL            StageName = "dnsblValidation"
	StageSPF              StageName = "spfValidation"
	StageDKIM             StageName = "dkimValidation"
	StageDMARC            StageName = "dmarcValidation"
	StageSMTP             StageName = "smtpValidation"

	// StageUnknown is reported when a stage faults unexpectedly.
	StageUnknown StageName = "unknown"
	// StageAll is reported as the verification method of a full pass.
	StageAll StageName = "all"
)

// Order is the fixed execution order of all known stages. The DKIM stage
// is only part of a pipeline when explicitly enabled; its slot sits
// between SPF and DMARC so enabling it never moves another stage.
var Order = []StageName{
	StageInput,
	StageSyntax,
	StageDomainExtraction,
	StageDisposable,
	StageDNS,
	StageMX,
	StageDNSBL,
	StageSPF,
	StageDKIM,
	StageDMARC,
	StageSMTP,
}

// Status is the terminal state of a verification run.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// StageResult is the outcome of a single executed stage.
type StageResult struct {
	Stage   StageName `json:"stage"`
	Passed  bool      `json:"passed"`
	Details string    `json:"details,omitempty"`
}
