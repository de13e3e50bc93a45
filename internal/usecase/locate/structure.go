package locate

import (
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
)

// genericTerms are index terms that describe movable clutter rather than the
// place itself. Without the down-weighting, a room full of boxes outranks
// the room with the 3d printer on a "box on a desk" caption.
var genericTerms = map[string]struct{}{
	"box": {}, "boxes": {}, "bin": {}, "item": {}, "items": {}, "bag": {},
	"bottle": {}, "cup": {}, "chair": {}, "laptop": {}, "phone": {},
	"book": {}, "books": {}, "paper": {}, "papers": {}, "cable": {},
	"monitor": {}, "bottle of water": {}, "backpack": {}, "jacket": {},
}

// scoreStructure scores every topology node against the query using the
// curated index terms. Raw scores are unbounded but comparable within one
// call; ties are left alone here and broken after fusion (continuity state
// is not visible at this layer).
func scoreStructure(cfg Config, q query, nodes []*domscene.Node) map[string]float64 {
	scores := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		scores[n.ID] = scoreNode(cfg, q, n)
	}
	return scores
}

func scoreNode(cfg Config, q query, n *domscene.Node) float64 {
	score := 0.0
	matches := 0

	for _, term := range n.IndexTerms {
		w := cfg.ExactTermWeight * termSpecificity(cfg, term)
		if q.containsPhrase(term) {
			score += w
			matches++
			continue
		}
		if hits, total := q.tokenOverlap(term); hits > 0 && total > 0 {
			score += cfg.PartialTermWeight * termSpecificity(cfg, term) *
				float64(hits) / float64(total)
		}
	}

	for _, tag := range n.Tags {
		if q.containsPhrase(tag) {
			score += cfg.TagWeight * termSpecificity(cfg, tag)
			matches++
		}
	}

	// Several independent category hits are stronger evidence than any
	// single one: the caption is describing this node's ensemble.
	if matches >= 2 {
		score += cfg.MultiCategoryBonus * float64(matches-1)
	}

	// Anti-evidence: a negative term in the query rules this node down.
	for _, neg := range n.NegativeTerms {
		if q.containsPhrase(neg) {
			score -= cfg.NegativeTermPenalty
		}
	}

	return score
}

// termSpecificity down-weights generic movable-object terms relative to
// specific fixtures.
func termSpecificity(cfg Config, term string) float64 {
	if _, ok := genericTerms[normalizeText(term)]; ok {
		return cfg.GenericTermFactor
	}
	return 1.0
}
