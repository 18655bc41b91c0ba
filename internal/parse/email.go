// Package parse turns normalized address strings into their local and
// domain parts, handling internationalized domains (IDNA2008) and local
// parts (RFC 6531).
package parse

import (
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// Email is a parsed address. The check package stages receive it through
// their shared run state.
type Email struct {
	Raw           string // the trimmed input
	Local         string // the part before @
	Domain        string // the part after @, lower-cased ASCII/Punycode (for DNS/SMTP)
	DomainUnicode string // the part after @, Unicode form (for display/typo detection)
	Valid         bool   // false if Raw cannot be parsed
}

// NewEmail parses raw with net/mail, falling back to a manual split for
// internationalized local parts that net/mail rejects.
// If parsing fails, Valid=false but Raw is always populated.
func NewEmail(raw string) Email {
	raw = strings.TrimSpace(raw)

	// Angle-addr and display-name forms are not bare addresses.
	if strings.ContainsAny(raw, "<>") {
		return Email{Raw: raw}
	}

	addr, err := mail.ParseAddress(raw)
	if err != nil {
		addr, err = mail.ParseAddress("<" + raw + ">")
		if err != nil {
			return parseManual(raw)
		}
	}

	local, domain, ok := Split(addr.Address)
	if !ok {
		return Email{Raw: raw}
	}
	return build(raw, local, domain)
}

// Split cuts addr at its first @. ok is false when there is no @ or
// either side is empty.
func Split(addr string) (local, domain string, ok bool) {
	local, domain, found := strings.Cut(addr, "@")
	if !found || local == "" || domain == "" {
		return "", "", false
	}
	return local, domain, true
}

func parseManual(raw string) Email {
	local, domain, ok := Split(raw)
	if !ok {
		return Email{Raw: raw}
	}
	return build(raw, local, domain)
}

func build(raw, local, domain string) Email {
	ascii, unicode, ok := Domain(domain)
	if !ok {
		return Email{Raw: raw}
	}
	return Email{
		Raw:           raw,
		Local:         local,
		Domain:        ascii,
		DomainUnicode: unicode,
		Valid:         true,
	}
}

// Domain lower-cases domain and returns its ASCII/Punycode and Unicode
// forms. ok is false if a non-ASCII domain fails IDNA2008 validation.
func Domain(domain string) (ascii, unicode string, ok bool) {
	domain = strings.ToLower(domain)

	if !isASCII(domain) {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", false
		}
		return a, domain, true
	}

	// Existing Punycode (xn--mnchen-3ya.de) gets a readable form.
	u, err := idna.Display.ToUnicode(domain)
	if err != nil {
		u = domain
	}
	return domain, u, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
