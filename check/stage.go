package check

import (
	"context"
	"net"

	"github.com/optimode/mailverify/internal/parse"
	"github.com/optimode/mailverify/types"
)

// Stage is one link of the verification chain. Check returns a short
// human-readable detail on success. On failure it returns a
// *types.StageError carrying the stage name; no later stage runs.
type Stage interface {
	Name() types.StageName
	Check(ctx context.Context, st *State) (details string, err error)
}

// State carries the validated output of earlier stages to later ones.
// A fresh State is used for every run.
type State struct {
	Raw     string      // input as received
	Address string      // set by InputNormalizer
	Email   parse.Email // set by DomainExtractor

	IPv4 []string  // set by DNSChecker
	MX   []*net.MX // set by MXChecker, sorted by preference

	MXHost     string // host that answered the mailbox probe
	SMTPCode   int
	Suggestion string // likely intended domain, when the domain looks mistyped
}

func fail(stage types.StageName, kind types.Kind, msg string, cause error) error {
	return &types.StageError{Stage: stage, Kind: kind, Message: msg, Err: cause}
}
