package lexical

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// tokenPattern keeps runs of word characters at least two runes long, the
// usual retrieval convention. Unicode classes rather than \w, so accented
// and non-Latin terms in postings tokenize as whole words. Numerals survive
// tokenization on purpose: postings lean on terms like "k8s" or "365".
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases the text (deliberately the only normalization), then
// splits it into word tokens, drops English stopwords, and stems each token
// with the Snowball "english" stemmer. An all-stopword input tokenizes to
// nothing, which is a valid (zero-scoring) query, not an error.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)

	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if stopwords[tok] {
			continue
		}
		stemmed, err := snowball.Stem(tok, "english", false)
		if err != nil || stemmed == "" {
			// non-stemmable token (digits, foreign script) is kept as-is
			out = append(out, tok)
			continue
		}
		out = append(out, stemmed)
	}
	return out
}
