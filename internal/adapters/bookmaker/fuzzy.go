package bookmaker

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// countrySynonyms folds demonyms onto country names so "Dutch Eredivisie"
// and "Netherlands Eredivisie" tokenize the same.
var countrySynonyms = map[string]string{
	"dutch":      "netherlands",
	"french":     "france",
	"german":     "germany",
	"spanish":    "spain",
	"italian":    "italy",
	"english":    "england",
	"portuguese": "portugal",
	"brazilian":  "brazil",
	"russian":    "russia",
	"belgian":    "belgium",
	"american":   "usa",
}

// stripDiacritics removes combining marks: "Atlético" -> "Atletico".
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// tokenize lowercases, strips diacritics, splits on anything that is not a
// letter or digit and applies the synonym table.
func tokenize(s string) []string {
	s = strings.ToLower(stripDiacritics(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for i, f := range fields {
		if syn, ok := countrySynonyms[f]; ok {
			fields[i] = syn
		}
	}
	return fields
}

// Similarity is the best of the plain, token-sort and token-set ratios of
// the normalized names, in [0, 1].
func Similarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	best := ratio(strings.Join(ta, " "), strings.Join(tb, " "))
	if r := tokenSortRatio(ta, tb); r > best {
		best = r
	}
	if r := tokenSetRatio(ta, tb); r > best {
		best = r
	}
	return best
}

func tokenSortRatio(ta, tb []string) float64 {
	return ratio(sortedJoin(ta), sortedJoin(tb))
}

// tokenSetRatio compares the shared tokens against each side's full token
// set, so "Real Madrid" matches "Real Madrid CF" strongly. 0 when the sides
// share nothing.
func tokenSetRatio(ta, tb []string) float64 {
	setA, setB := toSet(ta), toSet(tb)
	var inter, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	if len(inter) == 0 {
		return 0
	}

	base := sortedJoin(inter)
	combA := strings.TrimSpace(base + " " + sortedJoin(onlyA))
	combB := strings.TrimSpace(base + " " + sortedJoin(onlyB))
	return max(ratio(base, combA), ratio(base, combB), ratio(combA, combB))
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func sortedJoin(tokens []string) string {
	cp := append([]string(nil), tokens...)
	sort.Strings(cp)
	return strings.Join(cp, " ")
}

// ratio compares a and b character by character with difflib's
// SequenceMatcher: 2·M/T over both lengths, 1 when both are empty.
func ratio(a, b string) float64 {
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func splitChars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
