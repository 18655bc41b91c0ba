// Package disposable holds the set of known throwaway mail domains.
package disposable

import (
	_ "embed"
	"strings"
)

//go:embed list.txt
var rawList string

// Set is an immutable, case-insensitive domain set. The zero value is
// empty and safe to use.
type Set struct {
	domains map[string]struct{}
}

// New builds a Set from domains. Entries are trimmed and lower-cased;
// empty entries and #-comments are skipped.
func New(domains ...string) Set {
	s := Set{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || strings.HasPrefix(d, "#") {
			continue
		}
		s.domains[d] = struct{}{}
	}
	return s
}

// Default returns the built-in list merged with extra.
func Default(extra ...string) Set {
	return New(append(strings.Split(rawList, "\n"), extra...)...)
}

// Contains reports whether domain is in the set.
func (s Set) Contains(domain string) bool {
	_, ok := s.domains[strings.ToLower(domain)]
	return ok
}

// Len returns the number of domains in the set.
func (s Set) Len() int {
	return len(s.domains)
}
