package locate

import "fmt"

// Config enumerates every tunable of the fusion engine: channel
// temperatures, fusion weight bounds, continuity bonus magnitudes, and the
// confidence model. All scoring code reads its constants from here so the
// tunables stay unit-testable independent of the algorithm.
type Config struct {
	// Channel calibration temperatures. Structure scores are coarser than
	// detail scores, so the channels calibrate with different temperatures.
	StructureTemperature float64
	DetailTemperature    float64

	// Structure scorer.
	ExactTermWeight     float64 // full phrase match of an index term
	PartialTermWeight   float64 // word-level overlap with an index term
	TagWeight           float64 // tag matches count at reduced weight
	MultiCategoryBonus  float64 // per additional simultaneous term match
	GenericTermFactor   float64 // multiplier for generic/movable-object terms
	NegativeTermPenalty float64 // per negative-term hit in the query

	// Detail scorer. DetailCeiling caps the total per-entry contribution so
	// no single heuristic can dominate the fused score.
	LexicalWeight      float64
	SemanticWeight     float64
	StructuredWeight   float64
	SpatialBonus       float64
	UniqueFeatureBonus float64
	DetailCeiling      float64

	// Entropy-weighted fusion.
	WeightFloor            float64 // neither channel is ever fully silenced
	WeightCeil             float64 // nor fully dominant
	DefaultStructureWeight float64 // fallback α when both channels are diffuse
	HighEntropyCutoff      float64 // normalized entropy above which a channel counts as diffuse
	ConflictLogitGap       float64 // top-pick logit gap that arms the conflict gate
	ConflictShift          float64 // per-call weight shift toward the more confident channel

	// Continuity & topology prior. The total bonus is clamped into
	// [ContinuityMin, ContinuityMax] and scaled by ContinuityWeight in logit
	// space, so continuity nudges but never overrides strong disagreement.
	SameLocationBonus   float64
	NeighborBonus       float64
	SecondNeighborBonus float64
	OrientationBonus    float64
	OrientationPenalty  float64 // declared bearing contradicts the query
	LandmarkBonus       float64
	ContinuityMin       float64
	ContinuityMax       float64
	ContinuityWeight    float64

	// Post-fusion sharpener.
	SharpenTemperature float64
	SharpenSpreadGuard float64 // spread beyond which the temperature relaxes
	SharpenFloor       float64
	SharpenCeil        float64

	// Decision & confidence model.
	MarginMidpoint         float64 // logistic center: the "separable" margin
	MarginSlope            float64
	NoDetailDiscount       float64
	AgreementBoost         float64
	NeighborAgreementBoost float64
	ConflictDiscount       float64
	ContinuityBoost        float64
	CeilingBase            float64 // achievable confidence ceiling at zero margin
	CeilingSlope           float64 // ceiling growth per unit of margin
	CeilingMax             float64
	MinConfidence          float64 // below this the session is never updated

	// MaxCandidates bounds the candidate list returned to callers.
	MaxCandidates int
}

// DefaultConfig returns the tuned engine defaults.
func DefaultConfig() Config {
	return Config{
		StructureTemperature: 0.6,
		DetailTemperature:    0.45,

		ExactTermWeight:     1.0,
		PartialTermWeight:   0.35,
		TagWeight:           0.5,
		MultiCategoryBonus:  0.25,
		GenericTermFactor:   0.4,
		NegativeTermPenalty: 0.8,

		LexicalWeight:      1.0,
		SemanticWeight:     0.8,
		StructuredWeight:   0.5,
		SpatialBonus:       0.2,
		UniqueFeatureBonus: 0.3,
		DetailCeiling:      2.5,

		WeightFloor:            0.1,
		WeightCeil:             0.9,
		DefaultStructureWeight: 0.55,
		HighEntropyCutoff:      0.85,
		ConflictLogitGap:       1.5,
		ConflictShift:          0.15,

		SameLocationBonus:   0.35,
		NeighborBonus:       0.2,
		SecondNeighborBonus: 0.08,
		OrientationBonus:    0.05,
		OrientationPenalty:  0.05,
		LandmarkBonus:       0.05,
		ContinuityMin:       -0.05,
		ContinuityMax:       0.35,
		ContinuityWeight:    1.0,

		SharpenTemperature: 0.5,
		SharpenSpreadGuard: 0.35,
		SharpenFloor:       0.05,
		SharpenCeil:        0.8,

		MarginMidpoint:         0.12,
		MarginSlope:            14,
		NoDetailDiscount:       0.85,
		AgreementBoost:         1.15,
		NeighborAgreementBoost: 1.05,
		ConflictDiscount:       0.8,
		ContinuityBoost:        1.1,
		CeilingBase:            0.55,
		CeilingSlope:           1.2,
		CeilingMax:             0.95,
		MinConfidence:          0.45,

		MaxCandidates: 5,
	}
}

// Validate checks the structural constraints the fusion math relies on.
func (c Config) Validate() error {
	if c.StructureTemperature <= 0 || c.DetailTemperature <= 0 || c.SharpenTemperature <= 0 {
		return fmt.Errorf("temperatures must be positive")
	}
	if c.WeightFloor < 0 || c.WeightCeil > 1 || c.WeightFloor >= c.WeightCeil {
		return fmt.Errorf("weight bounds must satisfy 0 <= floor < ceil <= 1, got [%g, %g]",
			c.WeightFloor, c.WeightCeil)
	}
	if c.DefaultStructureWeight < c.WeightFloor || c.DefaultStructureWeight > c.WeightCeil {
		return fmt.Errorf("default structure weight %g outside [%g, %g]",
			c.DefaultStructureWeight, c.WeightFloor, c.WeightCeil)
	}
	if c.ContinuityMin > 0 || c.ContinuityMax <= 0 || c.ContinuityMin >= c.ContinuityMax {
		return fmt.Errorf("continuity bounds must satisfy min <= 0 < max, got [%g, %g]",
			c.ContinuityMin, c.ContinuityMax)
	}
	if c.SharpenFloor < 0 || c.SharpenCeil > 1 || c.SharpenFloor >= c.SharpenCeil {
		return fmt.Errorf("sharpen clip band must satisfy 0 <= floor < ceil <= 1, got [%g, %g]",
			c.SharpenFloor, c.SharpenCeil)
	}
	if c.MinConfidence < 0 || c.MinConfidence >= 1 {
		return fmt.Errorf("min confidence must be in [0, 1), got %g", c.MinConfidence)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive, got %d", c.MaxCandidates)
	}
	return nil
}
