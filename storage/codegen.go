package storage

import (
	"crypto/rand"
	"strings"
	"unicode"

	"github.com/mr-tron/base58"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	codeTypeLen = 3
	codeNameLen = 6
	// suffixBytes of randomness encode to roughly 6 base58 characters
	suffixBytes = 4
)

// GenerateCode builds a stable display code: type prefix, name fragment, random suffix.
// "invoice", "Café Olé" → "INV-CAFEOL-3xYz9k"
func GenerateCode(entityType, name string) string {
	prefix := codeFragment(entityType, codeTypeLen)
	if prefix == "" {
		prefix = "ENT"
	}
	fragment := codeFragment(name, codeNameLen)
	if fragment == "" {
		fragment = "X"
	}
	return prefix + "-" + fragment + "-" + codeSuffix()
}

// codeFragment keeps the first n ASCII letters and digits of s after diacritic folding, upper-cased
func codeFragment(s string, n int) string {
	folded := foldDiacritics(s)

	var b strings.Builder
	for _, r := range folded {
		if b.Len() >= n {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func codeSuffix() string {
	buf := make([]byte, suffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return base58.Encode(buf)
}
