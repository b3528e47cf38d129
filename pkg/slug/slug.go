// Package slug turns display names into stable lowercase ASCII identifiers.
package slug

import (
	"strconv"
	"strings"
	"unicode"
)

// MaxLen caps generated slugs.
const MaxLen = 64

var folds = map[rune]string{
	'à': "a", 'á': "a", 'â': "a", 'ã': "a", 'ä': "a", 'å': "a", 'æ': "ae",
	'ç': "c", 'è': "e", 'é': "e", 'ê': "e", 'ë': "e",
	'ì': "i", 'í': "i", 'î': "i", 'ï': "i", 'ı': "i",
	'ñ': "n", 'ò': "o", 'ó': "o", 'ô': "o", 'õ': "o", 'ö': "o", 'ø': "o", 'œ': "oe",
	'ù': "u", 'ú': "u", 'û': "u", 'ü': "u", 'ý': "y", 'ÿ': "y",
	'ğ': "g", 'ş': "s", 'ß': "ss", 'ł': "l",
}

// Generate lowercases name, folds common Latin letters to ASCII and joins the
// remaining alphanumeric runs with single hyphens. Other characters are
// dropped. The result is at most MaxLen bytes and never ends in a hyphen.
//
//	Generate("Wireless Headphones (2nd Gen)") == "wireless-headphones-2nd-gen"
//	Generate("Café Crème") == "cafe-creme"
func Generate(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		var part string
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			part = string(r)
		case folds[r] != "":
			part = folds[r]
		default:
			pendingHyphen = b.Len() > 0
			continue
		}

		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteString(part)
	}

	s := b.String()
	if len(s) > MaxLen {
		s = strings.TrimRight(s[:MaxLen], "-")
	}
	return s
}

// Unique returns Generate(name), suffixed with -2, -3 and so on until taken
// reports false.
func Unique(name string, taken func(string) bool) string {
	base := Generate(name)
	if !taken(base) {
		return base
	}
	for i := 2; ; i++ {
		suffix := "-" + strconv.Itoa(i)
		candidate := base
		if len(candidate)+len(suffix) > MaxLen {
			candidate = strings.TrimRight(candidate[:MaxLen-len(suffix)], "-")
		}
		candidate += suffix
		if !taken(candidate) {
			return candidate
		}
	}
}
