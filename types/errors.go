package types

import "fmt"

// Kind classifies a stage failure.
type Kind string

const (
	KindInput      Kind = "InputError"
	KindSyntax     Kind = "SyntaxError"
	KindStructural Kind = "StructuralError"
	KindPolicy     Kind = "PolicyError"
	KindDNS        Kind = "DnsError"
	KindReputation Kind = "ReputationError"
	KindSMTP       Kind = "SmtpError"
	KindInternal   Kind = "InternalError"
)

// StageError is the single terminal failure of a verification run.
// Message is user-facing; Err, when set, carries the underlying cause.
type StageError struct {
	Stage   StageName
	Kind    Kind
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
