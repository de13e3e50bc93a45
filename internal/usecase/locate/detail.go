package locate

import (
	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
)

// structuredKeyWeights ranks which structured feature keys discriminate
// locations. Fixed furniture and objects pin a place down; colors and
// materials repeat everywhere.
var structuredKeyWeights = map[string]float64{
	"objects":   1.0,
	"object":    1.0,
	"location":  1.0,
	"furniture": 1.0,
	"fixture":   0.9,
	"color":     0.4,
	"colors":    0.4,
	"material":  0.4,
	"lighting":  0.5,
}

const defaultStructuredKeyWeight = 0.7

// scoreDetail scores one detail entry against the query. queryVec may be
// nil (no semantic term). structureTrust is the structure channel's
// calibrated probability for the entry's node: the semantic bonus scales
// inversely with it, so the detail channel leans in exactly where structure
// is unsure.
func scoreDetail(cfg Config, q query, e *domscene.DetailEntry, queryVec []float32, structureTrust float64) float64 {
	score := cfg.LexicalWeight * q.overlapRatio(e.Text)

	if len(queryVec) > 0 && len(e.Embedding) > 0 {
		cos := cosineClamped(queryVec, e.Embedding)
		score += cfg.SemanticWeight * cos * (1 - structureTrust)
	}

	for key, value := range e.Structured {
		if !q.containsPhrase(value) {
			continue
		}
		w, ok := structuredKeyWeights[key]
		if !ok {
			w = defaultStructuredKeyWeight
		}
		score += cfg.StructuredWeight * w
	}

	for dir, landmark := range e.SpatialRelations {
		if q.containsPhrase(landmark) {
			score += cfg.SpatialBonus
			// Direction echoed too: the caption places the landmark on the
			// same side this entry does.
			if q.orientation != "" && q.orientation == dir {
				score += cfg.SpatialBonus / 2
			}
		}
	}

	for _, feat := range e.UniqueFeatures {
		if q.containsPhrase(feat) {
			score += cfg.UniqueFeatureBonus
		}
	}

	// Ceiling: no single entry's heuristics may dominate the fused score.
	if score > cfg.DetailCeiling {
		score = cfg.DetailCeiling
	}
	return score
}

// scoreDetails produces per-node detail scores: when several entries
// describe the same node, the best match wins.
func scoreDetails(
	cfg Config, q query,
	entriesByNode map[string][]domscene.DetailEntry,
	queryVec []float32,
	structureTrust map[string]float64,
) map[string]float64 {
	scores := make(map[string]float64, len(entriesByNode))
	for nodeID, entries := range entriesByNode {
		best := 0.0
		for i := range entries {
			s := scoreDetail(cfg, q, &entries[i], queryVec, structureTrust[nodeID])
			if s > best {
				best = s
			}
		}
		scores[nodeID] = best
	}
	return scores
}

func cosineClamped(a, b []float32) float64 {
	cos := domain.Cosine(a, b)
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return cos
}
