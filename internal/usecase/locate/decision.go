package locate

import (
	domlocate "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/locate"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
)

// decision is the outcome of the confidence model for one query.
type decision struct {
	Confidence   float64
	Margin       float64
	ShouldUpdate bool
}

// decide turns the final ranking into a (confidence, margin, update?)
// triple. Confidence is a smooth logistic function of the margin (never a
// step) times evidence multipliers, clamped under a ceiling that itself
// scales with margin so an ambiguous ranking can never report near-certainty.
func decide(
	cfg Config,
	ranked []domlocate.Candidate,
	info fusionInfo,
	structTopID, detailTopID string,
	sc *domscene.Scene,
	prevLocation string,
) decision {
	if len(ranked) == 0 {
		return decision{}
	}

	top := ranked[0]
	margin := 0.0
	if len(ranked) > 1 {
		margin = top.FusedScore - ranked[1].FusedScore
	}

	conf := sigmoid((margin - cfg.MarginMidpoint) * cfg.MarginSlope)

	// A top candidate nobody wrote a detail entry for is weaker evidence.
	if !top.HasDetail {
		conf *= cfg.NoDetailDiscount
	}

	// Channel agreement on the winner.
	switch {
	case structTopID == top.NodeID && detailTopID == top.NodeID:
		conf *= cfg.AgreementBoost
	case structTopID != "" && detailTopID != "" && sc.IsNeighbor(structTopID, detailTopID):
		conf *= cfg.NeighborAgreementBoost
	case info.ConflictGated:
		conf *= cfg.ConflictDiscount
	}

	if prevLocation != "" && top.NodeID == prevLocation {
		conf *= cfg.ContinuityBoost
	}

	// Margin-scaled ceiling: low margin caps the achievable confidence.
	ceiling := clamp(cfg.CeilingBase+cfg.CeilingSlope*margin, 0, cfg.CeilingMax)
	conf = clamp(conf, 0, ceiling)

	return decision{
		Confidence:   conf,
		Margin:       margin,
		ShouldUpdate: conf >= cfg.MinConfidence,
	}
}
