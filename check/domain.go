package check

import (
	"context"
	"strings"

	"github.com/optimode/mailverify/internal/disposable"
	"github.com/optimode/mailverify/internal/levenshtein"
	"github.com/optimode/mailverify/types"
)

const disposableFailed = "Email failed disposable domain validation test."

// DomainConfig is the disposable-domain stage configuration.
type DomainConfig struct {
	Disposable    disposable.Set
	CheckTypos    bool
	TypoThreshold int
}

// DisposableChecker rejects throwaway mail domains. When typo detection is
// on it also records a likely intended provider, without failing.
type DisposableChecker struct {
	cfg            DomainConfig
	knownProviders []string // major providers for typo detection
}

// defaultKnownProviders is the list of known major email providers.
// A domain within TypoThreshold distance of one of these gets a suggestion.
var defaultKnownProviders = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "yahoo.co.uk", "yahoo.fr", "yahoo.de",
	"outlook.com", "hotmail.com", "hotmail.co.uk", "live.com",
	"icloud.com", "me.com", "mac.com",
	"protonmail.com", "proton.me",
	"aol.com",
	"zoho.com",
	"yandex.com", "yandex.ru",
	"mail.com",
	"gmx.com", "gmx.net", "gmx.de",
	"fastmail.com",
	"tutanota.com",
}

func NewDisposableChecker(cfg DomainConfig) *DisposableChecker {
	if cfg.TypoThreshold <= 0 {
		cfg.TypoThreshold = 2
	}
	return &DisposableChecker{
		cfg:            cfg,
		knownProviders: defaultKnownProviders,
	}
}

func (c *DisposableChecker) Name() types.StageName { return types.StageDisposable }

func (c *DisposableChecker) Check(_ context.Context, st *State) (string, error) {
	domain := strings.ToLower(st.Email.Domain)
	if c.cfg.Disposable.Contains(domain) {
		return "", fail(types.StageDisposable, types.KindPolicy, disposableFailed, nil)
	}

	if c.cfg.CheckTypos {
		// Unicode form matches better against the provider list.
		if s, ok := levenshtein.Closest(strings.ToLower(st.Email.DomainUnicode), c.knownProviders, c.cfg.TypoThreshold); ok {
			st.Suggestion = s
			return "possible typo in domain, did you mean " + s, nil
		}
	}
	return "domain not disposable", nil
}
