package locate

import "math"

// logitEps keeps probabilities away from 0 and 1 before log/logit
// operations so no NaN or Inf ever reaches the decision layer.
const logitEps = 1e-6

// softmax converts raw channel scores into a probability distribution via a
// temperature-scaled, numerically stable softmax. An empty input returns
// nil; equal scores (including all-zero) come out uniform.
func softmax(scores []float64, temperature float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	if temperature <= 0 {
		temperature = 1
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		v := math.Exp((s - maxScore) / temperature)
		out[i] = v
		sum += v
	}
	// sum >= 1 always (the max term contributes exp(0) = 1), but guard the
	// degenerate single-candidate / underflow paths anyway.
	if sum <= 0 || math.IsNaN(sum) {
		uniform := 1.0 / float64(len(scores))
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// entropy returns the Shannon entropy of a distribution in nats.
func entropy(p []float64) float64 {
	h := 0.0
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log(v)
		}
	}
	return h
}

// normalizedEntropy scales entropy into [0, 1] by the maximum for the
// distribution's support size. A single-candidate distribution is perfectly
// sharp by definition.
func normalizedEntropy(p []float64) float64 {
	if len(p) <= 1 {
		return 0
	}
	h := entropy(p) / math.Log(float64(len(p)))
	return clamp(h, 0, 1)
}

// clarity is the channel trust signal: 1 for a one-hot distribution, 0 for
// uniform.
func clarity(p []float64) float64 {
	return 1 - normalizedEntropy(p)
}

// logit converts a probability to log-odds with clamped input.
func logit(p float64) float64 {
	p = clamp(p, logitEps, 1-logitEps)
	return math.Log(p / (1 - p))
}

// sigmoid is the inverse of logit.
func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// sharpen re-calibrates the fused distribution with a second,
// lower-temperature pass. When both channels are diffuse the fused
// distribution can be near flat (top two at 0.31 vs 0.30), useless for a
// decision even though one candidate is genuinely better supported.
//
// Guard: when the fused distribution is already widely spread, the
// temperature relaxes proportionally so discriminative results are not
// pushed to pathological extremes. Final probabilities are clipped into
// [SharpenFloor, SharpenCeil] and renormalized so the confidence math stays
// numerically sane.
func sharpen(fused []float64, cfg Config) []float64 {
	if len(fused) == 0 {
		return nil
	}
	if len(fused) == 1 {
		return []float64{1}
	}

	minP, maxP := fused[0], fused[0]
	for _, v := range fused[1:] {
		if v < minP {
			minP = v
		}
		if v > maxP {
			maxP = v
		}
	}

	temperature := cfg.SharpenTemperature
	if spread := maxP - minP; cfg.SharpenSpreadGuard > 0 && spread > cfg.SharpenSpreadGuard {
		temperature *= spread / cfg.SharpenSpreadGuard
	}

	logits := make([]float64, len(fused))
	for i, p := range fused {
		logits[i] = logit(p)
	}
	out := softmax(logits, temperature)

	sum := 0.0
	for i := range out {
		out[i] = clamp(out[i], cfg.SharpenFloor, cfg.SharpenCeil)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
