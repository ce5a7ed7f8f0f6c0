package datamodel

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Place is a location resolved to coordinates, ready to be polled.
// The slug identifies the place in topics and URLs and must be unique.
type Place struct {
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AltitudeM int     `json:"altitude_m"`
	Timezone  string  `json:"timezone"`
}

// Letters that do not decompose into a base letter plus combining mark,
// so stripping diacritics alone would swallow them.
var slugReplacer = strings.NewReplacer(
	"ß", "ss",
	"ø", "o", "Ø", "o",
	"æ", "ae", "Æ", "ae",
	"đ", "d", "Đ", "d",
)

var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a topic and URL safe identifier from a place name:
// diacritics are stripped, everything outside [a-z0-9] becomes a single
// dash. "Bad Münstereifel" becomes "bad-munstereifel".
func Slugify(name string) string {
	name = slugReplacer.Replace(name)
	if folded, _, err := transform.String(slugTransformer, name); err == nil {
		name = folded
	}

	var b strings.Builder
	b.Grow(len(name))
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		} else {
			pendingDash = true
		}
	}
	return b.String()
}
