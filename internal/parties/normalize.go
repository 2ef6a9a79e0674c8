package parties

import (
	"strings"
	"unicode"
)

// legalSuffixes are corporate form tokens stripped from the tail of a
// normalized name so "Acme Corp." and "ACME Corporation" compare equal.
var legalSuffixes = map[string]bool{
	"ab":           true,
	"ag":           true,
	"bv":           true,
	"co":           true,
	"company":      true,
	"corp":         true,
	"corporation":  true,
	"gmbh":         true,
	"inc":          true,
	"incorporated": true,
	"kg":           true,
	"limited":      true,
	"llc":          true,
	"llp":          true,
	"ltd":          true,
	"nv":           true,
	"oy":           true,
	"plc":          true,
	"pty":          true,
	"sa":           true,
	"sarl":         true,
	"srl":          true,
}

// Normalize lowercases a party name, replaces punctuation with spaces,
// collapses whitespace, and strips trailing legal suffixes. The result
// is the canonical form stored in aliases and compared by the matching
// engine.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, " ")
}
