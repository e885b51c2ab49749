// Package emailguess derives candidate work addresses from a name and a
// company domain.
package emailguess

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Patterns returns candidate addresses in the order they are most commonly
// used: first.last, firstlast, f.last, flast, first, first_last. It returns
// nil when any part is unusable.
func Patterns(first, last, domain string) []string {
	f := localPart(first)
	l := localPart(last)
	d := strings.ToLower(strings.TrimSpace(domain))
	if f == "" || l == "" || d == "" || !strings.Contains(d, ".") {
		return nil
	}
	fi := f[:1]
	return []string{
		f + "." + l + "@" + d,
		f + l + "@" + d,
		fi + "." + l + "@" + d,
		fi + l + "@" + d,
		f + "@" + d,
		f + "_" + l + "@" + d,
	}
}

// Best returns the first pattern, or "" when none can be built.
func Best(first, last, domain string) string {
	p := Patterns(first, last, domain)
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// localPart folds a name to ASCII letters and digits: accents are dropped,
// spaces, hyphens and apostrophes removed.
func localPart(name string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(strings.TrimSpace(name))) {
		if r > unicode.MaxASCII {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
