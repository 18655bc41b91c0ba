package check

import (
	"context"
	"strings"

	"github.com/optimode/mailverify/types"
)

const inputFailed = "Email failed to pass input validation test."

// Normalize trims raw and rejects anything that is not a single address
// token: empty input, more than one whitespace-separated token, or a
// comma/semicolon separated recipient list.
func Normalize(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	switch {
	case addr == "":
		return "", fail(types.StageInput, types.KindInput, inputFailed, nil)
	case strings.ContainsAny(addr, ",;"):
		return "", fail(types.StageInput, types.KindInput, inputFailed, nil)
	case len(strings.Fields(addr)) > 1:
		return "", fail(types.StageInput, types.KindInput, inputFailed, nil)
	}
	return addr, nil
}

// InputNormalizer is the inputValidation stage.
type InputNormalizer struct{}

func NewInputNormalizer() *InputNormalizer {
	return &InputNormalizer{}
}

func (c *InputNormalizer) Name() types.StageName { return types.StageInput }

func (c *InputNormalizer) Check(_ context.Context, st *State) (string, error) {
	addr, err := Normalize(st.Raw)
	if err != nil {
		return "", err
	}
	st.Address = addr
	return "single address", nil
}
