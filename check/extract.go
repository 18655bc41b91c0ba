package check

import (
	"context"
	"fmt"

	"github.com/optimode/mailverify/internal/parse"
	"github.com/optimode/mailverify/types"
)

const extractFailed = "Email failed to pass domain extraction test."

// DomainExtractor splits the address on its first @ into the local part
// and the lower-cased domain used by every later lookup.
type DomainExtractor struct{}

func NewDomainExtractor() *DomainExtractor {
	return &DomainExtractor{}
}

func (c *DomainExtractor) Name() types.StageName { return types.StageDomainExtraction }

func (c *DomainExtractor) Check(_ context.Context, st *State) (string, error) {
	// Unreachable after a passing syntax stage; checked anyway because the
	// stage can run on its own.
	local, domain, ok := parse.Split(st.Address)
	if !ok {
		return "", fail(types.StageDomainExtraction, types.KindStructural, extractFailed,
			fmt.Errorf("no local part and domain in %q", st.Address))
	}

	ascii, unicode, ok := parse.Domain(domain)
	if !ok {
		return "", fail(types.StageDomainExtraction, types.KindStructural, extractFailed,
			fmt.Errorf("domain %q is not a valid IDNA name", domain))
	}

	st.Email = parse.Email{
		Raw:           st.Address,
		Local:         local,
		Domain:        ascii,
		DomainUnicode: unicode,
		Valid:         true,
	}
	return "domain " + ascii, nil
}
