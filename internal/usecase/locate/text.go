package locate

import "strings"

// query is the preprocessed form of one caption, computed once per call and
// shared by both scorers and the continuity prior.
type query struct {
	raw    string
	norm   string
	tokens map[string]struct{}
	// orientation is the bearing keyword inferred from the caption
	// ("left", "right", "ahead", "behind"), or empty.
	orientation string
}

// stopwords are dropped from token overlap. Captioning models pad with
// exactly this kind of filler.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"there": {}, "this": {}, "that": {}, "it": {}, "its": {}, "of": {},
	"on": {}, "in": {}, "at": {}, "to": {}, "with": {}, "and": {}, "or": {},
	"some": {}, "many": {}, "several": {}, "i": {}, "see": {}, "can": {},
	"photo": {}, "image": {}, "picture": {}, "appears": {}, "visible": {},
}

// orientationWords maps caption phrasing to the canonical bearing keywords
// node hints are declared in.
var orientationWords = map[string]string{
	"left": "left", "right": "right",
	"ahead": "ahead", "front": "ahead", "forward": "ahead",
	"behind": "behind", "back": "behind",
}

func parseQuery(s string) query {
	norm := normalizeText(s)
	toks := make(map[string]struct{})
	orientation := ""
	for _, w := range strings.Fields(norm) {
		if o, ok := orientationWords[w]; ok && orientation == "" {
			orientation = o
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		toks[w] = struct{}{}
	}
	return query{raw: s, norm: norm, tokens: toks, orientation: orientation}
}

// normalizeText lowercases and collapses everything but letters and digits
// to single spaces.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// containsPhrase reports whether the normalized query contains the phrase on
// word boundaries.
func (q query) containsPhrase(phrase string) bool {
	p := normalizeText(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+q.norm+" ", " "+p+" ")
}

// tokenOverlap returns how many of the phrase's non-stopword tokens appear
// in the query, and the phrase token count.
func (q query) tokenOverlap(phrase string) (hits, total int) {
	for _, w := range strings.Fields(normalizeText(phrase)) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		total++
		if _, ok := q.tokens[w]; ok {
			hits++
		}
	}
	return hits, total
}

// overlapRatio returns the fraction of the query's tokens that appear in the
// given text. Used by the detail channel where the description is long and
// the caption is short.
func (q query) overlapRatio(text string) float64 {
	if len(q.tokens) == 0 {
		return 0
	}
	textToks := make(map[string]struct{})
	for _, w := range strings.Fields(normalizeText(text)) {
		textToks[w] = struct{}{}
	}
	hits := 0
	for t := range q.tokens {
		if _, ok := textToks[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(q.tokens))
}
