package locate

// fusionInfo reports the per-call weight decisions for the confidence model
// and for logging. The conflict gate's adjustment lives here, computed once
// per query and never written back to shared state.
type fusionInfo struct {
	Alpha           float64 // structure weight
	Beta            float64 // detail weight
	StructureTop    int     // index of the structure channel's top pick, -1 when empty
	DetailTop       int
	StructClarity   float64
	DetailClarity   float64
	ConflictGated   bool
	ChannelsDiffuse bool
}

// fuseChannels combines the two calibrated distributions in log-odds space.
// Both distributions are aligned to the same candidate ordering; bonus is
// the continuity/topology prior per candidate, already clamped to its
// bounds. The returned values are per-candidate logistic probabilities, NOT
// renormalized across candidates; that is the sharpener's job.
func fuseChannels(structP, detailP, bonus []float64, cfg Config) ([]float64, fusionInfo) {
	info := fusionInfo{
		StructureTop:  argmax(structP),
		DetailTop:     argmax(detailP),
		StructClarity: clarity(structP),
		DetailClarity: clarity(detailP),
	}

	// Entropy-derived base weights: the sharper channel earns more trust.
	// When both channels are diffuse neither clarity means much, so fall
	// back to the fixed default split.
	structDiffuse := normalizedEntropy(structP) > cfg.HighEntropyCutoff
	detailDiffuse := normalizedEntropy(detailP) > cfg.HighEntropyCutoff
	alpha := cfg.DefaultStructureWeight
	if structDiffuse && detailDiffuse {
		info.ChannelsDiffuse = true
	} else if total := info.StructClarity + info.DetailClarity; total > 0 {
		alpha = info.StructClarity / total
	}
	alpha = clamp(alpha, cfg.WeightFloor, cfg.WeightCeil)

	// Conflict gate: the channels' top picks disagree and both are sure of
	// themselves. Shift weight toward the more internally confident channel
	// for this call only. Never zero either one out, never mutate config.
	if info.StructureTop >= 0 && info.DetailTop >= 0 && info.StructureTop != info.DetailTop {
		structTopLogit := logit(structP[info.StructureTop])
		detailTopLogit := logit(detailP[info.DetailTop])
		gap := structTopLogit - detailTopLogit
		if gap < 0 {
			gap = -gap
		}
		if gap > cfg.ConflictLogitGap {
			info.ConflictGated = true
			if structTopLogit >= detailTopLogit {
				alpha = clamp(alpha+cfg.ConflictShift, cfg.WeightFloor, cfg.WeightCeil)
			} else {
				alpha = clamp(alpha-cfg.ConflictShift, cfg.WeightFloor, cfg.WeightCeil)
			}
		}
	}

	info.Alpha = alpha
	info.Beta = 1 - alpha

	fused := make([]float64, len(structP))
	for i := range fused {
		z := info.Alpha*logit(structP[i]) +
			info.Beta*logit(detailP[i]) +
			cfg.ContinuityWeight*bonus[i]
		fused[i] = sigmoid(z)
	}
	return fused, info
}

// argmax returns the index of the largest value, preferring the earlier
// index on ties for determinism. Returns -1 for an empty slice.
func argmax(p []float64) int {
	best := -1
	for i, v := range p {
		if best < 0 || v > p[best] {
			best = i
		}
	}
	return best
}
