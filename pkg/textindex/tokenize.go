package textindex

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// defaultStopWords is the small fixed English list spec.md §4.4 calls
// for; overridable by passing a non-nil map to New/NewTokenizer. Carried over
// verbatim from the teacher's fulltext_index.go list, which deliberately
// leaves technical terms ("query", "learning", ...) unfiltered.
var defaultStopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {},
	"at": {}, "be": {}, "by": {}, "for": {}, "from": {},
	"has": {}, "have": {}, "he": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"with": {}, "this": {}, "but": {}, "they": {},
	"we": {}, "you": {}, "your": {}, "my": {}, "their": {},
	"been": {}, "do": {}, "does": {}, "did": {},
}

// Tokenizer implements spec.md §4.4's deterministic, language-agnostic
// default pipeline: lowercase, NFKC fold, split on non-alphanumeric,
// drop tokens shorter than 2 runes, drop stop words. The same tokenizer
// runs over both documents and queries so scoring is order-independent.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer builds a tokenizer. A nil stopWords uses the
// built-in default list; pass a non-nil map (possibly empty) to
// override it entirely, per spec.md §4.4's "overridable with a user
// list".
func NewTokenizer(stopWords map[string]struct{}) *Tokenizer {
	if stopWords == nil {
		stopWords = defaultStopWords
	}
	return &Tokenizer{stopWords: stopWords}
}

func (t *Tokenizer) Tokenize(text string) []string {
	folded := norm.NFKC.String(strings.ToLower(text))
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := t.stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}
