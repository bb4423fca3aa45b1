package registry

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Legal-form suffixes that do not distinguish one company from another.
var legalForms = map[string]struct{}{
	"sro": {}, "spol": {}, "as": {}, "ks": {}, "vos": {}, "zs": {},
	"ro": {}, "ltd": {}, "gmbh": {}, "inc": {}, "se": {}, "plc": {}, "llc": {},
}

var freeMailDomains = map[string]struct{}{
	"gmail.com":   {},
	"seznam.cz":   {},
	"email.cz":    {},
	"centrum.cz":  {},
	"outlook.com": {},
	"hotmail.com": {},
	"yahoo.com":   {},
	"icloud.com":  {},
	"post.cz":     {},
	"atlas.cz":    {},
}

// NormalizeName lowercases, folds diacritics, drops punctuation and strips
// legal-form tokens. "ACME, s.r.o." and "Acme" normalize to the same value.
func NormalizeName(name string) string {
	return strings.Join(nameTokens(name), " ")
}

func nameTokens(name string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	// "s.r.o." must collapse to one token before splitting on spaces.
	folded = strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == ',' || r == '\'' || r == '"':
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return ' '
		}
	}, folded)

	var tokens []string
	for _, f := range strings.Fields(folded) {
		if _, ok := legalForms[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// NamesMatch reports whether a declared name plausibly denotes the registered
// one. Tokens are compared whole: every significant declared token must appear
// in the registered name, or both names must spell the same letters.
func NamesMatch(declared, registered string) bool {
	d, r := significantTokens(declared), significantTokens(registered)
	if len(d) == 0 || len(r) == 0 {
		return false
	}
	if strings.Join(d, "") == strings.Join(r, "") {
		return true
	}
	return tokenSubset(d, r)
}

// significantTokens drops one-letter leftovers such as "s r o".
func significantTokens(name string) []string {
	var out []string
	for _, tok := range nameTokens(name) {
		if len(tok) >= 2 {
			out = append(out, tok)
		}
	}
	return out
}

func tokenSubset(sub, of []string) bool {
	set := make(map[string]struct{}, len(of))
	for _, tok := range of {
		set[tok] = struct{}{}
	}
	for _, tok := range sub {
		if _, ok := set[tok]; !ok {
			return false
		}
	}
	return true
}

// EmailDomain returns the lower-cased domain part of an address.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func IsFreeMailDomain(domain string) bool {
	_, ok := freeMailDomains[strings.ToLower(domain)]
	return ok
}

// minDomainLabel is the shortest domain label accepted as a company match.
const minDomainLabel = 3

// DomainMatches reports whether the second-level label of the email domain
// spells a run of consecutive tokens of the company name. "acme.com",
// "my-acme.cz" and "media-plus.cz" match "ACME s.r.o." and "Média Plus a.s.";
// "e.cz" matches nothing.
func DomainMatches(email, companyName string) bool {
	domain := EmailDomain(email)
	if domain == "" {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	label := labels[len(labels)-2]

	tokens := nameTokens(companyName)
	if len(tokens) == 0 {
		return false
	}

	candidates := append([]string{strings.ReplaceAll(label, "-", "")}, strings.Split(label, "-")...)
	for _, c := range candidates {
		if len(c) >= minDomainLabel && spellsTokenRun(c, tokens) {
			return true
		}
	}
	return false
}

func spellsTokenRun(s string, tokens []string) bool {
	for i := range tokens {
		run := ""
		for j := i; j < len(tokens) && len(run) < len(s); j++ {
			run += tokens[j]
			if run == s {
				return true
			}
		}
	}
	return false
}
