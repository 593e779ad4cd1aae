package group

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	dashRuns    = regexp.MustCompile(`-{2,}`)
	lower       = cases.Lower(language.Und)
)

// Slug folds s to a lowercase ASCII directory-safe name: accents are
// stripped, anything outside [a-z0-9_-] becomes "-", and runs of dashes
// collapse. "Café Müller, Köln" becomes "cafe-muller-koln".
func Slug(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	out := unsafeChars.ReplaceAllString(lower.String(folded), "-")
	out = dashRuns.ReplaceAllString(out, "-")
	return strings.Trim(out, "-")
}
