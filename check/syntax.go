package check

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/badoux/checkmail"

	"github.com/optimode/mailverify/internal/parse"
	"github.com/optimode/mailverify/types"
)

const syntaxFailed = "Email failed to pass syntax validation test."

// SyntaxChecker validates email syntax according to RFC 5321/5322
// with RFC 6531 (SMTPUTF8) and IDNA2008 internationalization support.
// It performs no I/O.
type SyntaxChecker struct{}

func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{}
}

func (c *SyntaxChecker) Name() types.StageName { return types.StageSyntax }

func (c *SyntaxChecker) Check(_ context.Context, st *State) (string, error) {
	if reason := Syntax(st.Address); reason != "" {
		return "", fail(types.StageSyntax, types.KindSyntax, syntaxFailed, errors.New(reason))
	}
	return "syntax ok", nil
}

// Syntax returns why addr is not a syntactically valid address, or "" if
// it is.
func Syntax(addr string) string {
	if addr == "" {
		return "empty email address"
	}
	if strings.Count(addr, "@") != 1 {
		return "address must contain exactly one @"
	}

	email := parse.NewEmail(addr)
	if !email.Valid {
		return "invalid email syntax"
	}

	// Length checks (RFC 5321)
	if len(addr) > 254 {
		return "email address exceeds 254 characters"
	}
	if len(email.Local) > 64 {
		return "local part exceeds 64 characters"
	}

	// net/mail.ParseAddress strips quotes from quoted local parts,
	// so the raw input is checked to detect the quoted form.
	quotedLocal := hasQuotedLocal(addr)
	if !quotedLocal {
		if reason := validateLocal(email.Local); reason != "" {
			return reason
		}
	}

	// Unicode form for readable messages; IDNA2008 validation already
	// happened during parsing.
	if reason := validateDomain(email.DomainUnicode); reason != "" {
		return reason
	}

	if !quotedLocal && isASCII(email.Local) {
		if err := checkmail.ValidateFormat(email.Local + "@" + email.Domain); err != nil {
			return "invalid email format"
		}
	}
	return ""
}

func hasQuotedLocal(raw string) bool {
	atIdx := strings.LastIndex(raw, "@")
	if atIdx < 1 {
		return false
	}
	local := raw[:atIdx]
	return len(local) >= 2 && strings.HasPrefix(local, `"`) && strings.HasSuffix(local, `"`)
}

// validateLocal validates the local part.
// Supports RFC 5321 ASCII characters and RFC 6531 (SMTPUTF8) Unicode characters.
// Returns the failure reason, or "" if ok.
func validateLocal(local string) string {
	if local == "" {
		return "local part is empty"
	}

	// RFC 5321 ASCII special characters (besides alphanumeric)
	asciiSpecial := "!#$%&'*+/=?^_`{|}~-."

	for _, ch := range local {
		if ch > 127 {
			// SMTPUTF8: non-ASCII characters are allowed, except controls
			if unicode.IsControl(ch) {
				return "local part contains control character"
			}
			continue
		}
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			continue
		}
		if !strings.ContainsRune(asciiSpecial, ch) {
			return "local part contains invalid character: " + string(ch)
		}
	}

	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return "local part cannot start or end with a dot"
	}
	if strings.Contains(local, "..") {
		return "local part cannot contain consecutive dots"
	}
	return ""
}

// validateDomain validates the domain part (Unicode form).
// Returns the failure reason, or "" if ok.
func validateDomain(domain string) string {
	if domain == "" {
		return "domain is empty"
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return "domain must have at least two labels"
	}

	for _, label := range labels {
		if label == "" {
			return "domain contains empty label (consecutive dots)"
		}
		if len(label) > 63 {
			return "domain label exceeds 63 characters"
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "domain label cannot start or end with a hyphen"
		}
		for _, ch := range label {
			if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '-' {
				return "domain label contains invalid character: " + string(ch)
			}
		}
	}

	// TLD cannot be all digits
	tld := labels[len(labels)-1]
	for _, ch := range tld {
		if !unicode.IsDigit(ch) {
			return ""
		}
	}
	return "TLD cannot be all digits"
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
