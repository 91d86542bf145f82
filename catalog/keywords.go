package catalog

import (
	"strings"
	"unicode"
)

// stopwords are dropped from requirement text before keyword matching
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "into": true, "have": true, "has": true, "are": true, "was": true,
	"were": true, "will": true, "would": true, "should": true, "can": true, "could": true,
	"need": true, "needs": true, "want": true, "our": true, "their": true, "each": true,
	"all": true, "any": true, "some": true, "new": true, "track": true, "store": true,
	"manage": true, "record": true, "records": true, "keep": true, "list": true,
	"including": true, "include": true, "about": true, "per": true, "who": true, "which": true,
}

// minKeywordLen drops short tokens such as "a", "to", "id"
const minKeywordLen = 3

// ExtractKeywords tokenizes text into distinct lower-case keywords.
// Tokens split on anything that is not a letter or digit, stopwords and short
// tokens are dropped, and simple plurals are folded ("invoices" becomes "invoice").
func ExtractKeywords(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if stopwords[tok] {
			continue
		}
		tok = singular(tok)
		if len([]rune(tok)) < minKeywordLen || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func singular(tok string) string {
	switch {
	case len(tok) > 4 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && !strings.HasSuffix(tok, "us"):
		return tok[:len(tok)-1]
	}
	return tok
}

// deriveKeywords builds a keyword set for a schema registered without one
func deriveKeywords(entityType, name, domain string) []string {
	return ExtractKeywords(strings.Join([]string{entityType, name, domain}, " "))
}
