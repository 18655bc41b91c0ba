package mailverify

import (
	"time"

	"github.com/optimode/mailverify/types"
)

// Outcome is the terminal result of one verification run. It is created
// once, at the first failing stage or after the last stage passes.
type Outcome struct {
	Email       string        `json:"email"`
	Status      Status        `json:"status"`
	FailedStage StageName     `json:"failedStage,omitempty"`
	Message     string        `json:"message"`
	CheckedAt   time.Time     `json:"checkedAt"`
	Stages      []StageResult `json:"stages"`
	MXHost      string        `json:"mxHost,omitempty"`
	SMTPCode    int           `json:"smtpCode,omitempty"`
	Suggestion  string        `json:"suggestion,omitempty"`

	// Err is the stage error behind a failed outcome.
	Err *types.StageError `json:"-"`
}

// Passed reports whether every stage passed.
func (o Outcome) Passed() bool {
	return o.Status == StatusPassed
}

// Verification names where the run ended: StageAll on a full pass,
// otherwise the failing stage (StageUnknown for an unexpected fault).
func (o Outcome) Verification() StageName {
	if o.Passed() {
		return StageAll
	}
	return o.FailedStage
}

// StageFor returns the StageResult for the given stage, if it ran.
func (o Outcome) StageFor(stage StageName) (StageResult, bool) {
	for _, s := range o.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageResult{}, false
}
