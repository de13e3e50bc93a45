package locate

import (
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
)

// continuityBonus computes the bounded topology/continuity prior for one
// candidate. Users walk, they do not teleport: the previous location and
// its graph neighborhood earn a bonus, with smaller bonuses for orientation
// and spatial-landmark consistency. The total is clamped into
// [ContinuityMin, ContinuityMax] regardless of how many signals fire.
func continuityBonus(
	cfg Config, sc *domscene.Scene, q query,
	node *domscene.Node, prevLocation string,
) float64 {
	b := 0.0

	if prevLocation != "" {
		switch {
		case node.ID == prevLocation:
			b += cfg.SameLocationBonus
		case sc.IsNeighbor(prevLocation, node.ID):
			b += cfg.NeighborBonus
		case sc.IsSecondNeighbor(prevLocation, node.ID):
			b += cfg.SecondNeighborBonus
		}
	}

	if q.orientation != "" && node.Bearing != "" {
		if node.Bearing == q.orientation {
			b += cfg.OrientationBonus
		} else {
			b -= cfg.OrientationPenalty
		}
	}

	// Landmark echo: a declared spatial-relation landmark of this node
	// shows up in the caption. One hit is enough; this is a nudge, not a
	// channel.
	for _, entry := range sc.DetailsFor(node.ID) {
		echoed := false
		for _, landmark := range entry.SpatialRelations {
			if q.containsPhrase(landmark) {
				b += cfg.LandmarkBonus
				echoed = true
				break
			}
		}
		if echoed {
			break
		}
	}

	return clamp(b, cfg.ContinuityMin, cfg.ContinuityMax)
}
