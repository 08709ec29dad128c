package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/uoknil/tauschBar/internal/models"
)

// Scorer ranks a candidate listing against a base listing. It is a ranking
// signal only; hard filtering happens in the funnel stages before scoring.
type Scorer interface {
	Score(base, candidate *models.Listing) (score int, matchedKeywords []string)
}

// stopWords are tokens carrying no topical signal. The marketplace is
// German-first with an English-speaking minority, so both are covered.
var stopWords = map[string]struct{}{
	"aber": {}, "auch": {}, "beim": {}, "biete": {}, "bitte": {}, "dann": {},
	"dass": {}, "dein": {}, "deine": {}, "dem": {}, "den": {}, "der": {},
	"des": {}, "dich": {}, "die": {}, "das": {}, "dir": {}, "doch": {},
	"eine": {}, "einem": {}, "einen": {}, "einer": {}, "eines": {}, "euch": {},
	"für": {}, "gerne": {}, "habe": {}, "haben": {}, "hier": {}, "ich": {},
	"ihre": {}, "kann": {}, "können": {}, "mein": {}, "meine": {}, "mich": {},
	"mit": {}, "nach": {}, "nicht": {}, "noch": {}, "nur": {}, "oder": {},
	"schon": {}, "sehr": {}, "sein": {}, "sich": {}, "sie": {}, "sind": {},
	"suche": {}, "und": {}, "vom": {}, "von": {}, "wenn": {}, "wie": {},
	"wir": {}, "wird": {}, "würde": {}, "zum": {}, "zur": {},
	"and": {}, "are": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"looking": {}, "need": {}, "not": {}, "offering": {}, "that": {},
	"the": {}, "this": {}, "was": {}, "were": {}, "will": {}, "with": {},
	"you": {}, "your": {},
}

// KeywordScorer scores candidates by whole-word overlap with the base
// listing's keywords. A keyword found anywhere in the candidate's title or
// description counts 1; a keyword found in the title counts 1 more, so title
// matches weigh double.
type KeywordScorer struct {
	minTokenLength int
}

// NewKeywordScorer creates a KeywordScorer. Tokens shorter than minTokenLength
// are discarded from the base keyword set; values below 1 fall back to 4.
func NewKeywordScorer(minTokenLength int) *KeywordScorer {
	if minTokenLength < 1 {
		minTokenLength = 4
	}
	return &KeywordScorer{minTokenLength: minTokenLength}
}

// Score implements Scorer.
func (s *KeywordScorer) Score(base, candidate *models.Listing) (int, []string) {
	keywords := s.keywords(base.SearchText())
	if len(keywords) == 0 {
		return 0, nil
	}

	bodyTokens := tokenSet(candidate.SearchText())
	titleTokens := tokenSet(candidate.Title)

	score := 0
	var matched []string
	for _, kw := range keywords {
		if _, ok := bodyTokens[kw]; !ok {
			continue
		}
		score++
		matched = append(matched, kw)
		if _, ok := titleTokens[kw]; ok {
			score++
		}
	}
	return score, matched
}

// keywords extracts the base keyword set: lower-cased whole words with
// punctuation stripped, minus short tokens and stop words. The result is
// sorted for deterministic match reporting.
func (s *KeywordScorer) keywords(text string) []string {
	seen := map[string]struct{}{}
	for token := range tokenSet(text) {
		if len([]rune(token)) < s.minTokenLength {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		seen[token] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// tokenSet splits text on anything that is not a letter or digit and
// lower-cases the pieces. Whole-word matching is set membership here, which
// is what keeps "dog" from matching inside "dogma".
func tokenSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
