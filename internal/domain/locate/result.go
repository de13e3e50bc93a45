// Package locate defines the result types of the localization pipeline.
package locate

// Candidate is one scored topology node for a single query. Created fresh
// per query, never persisted; the ranked result orders by FusedScore
// descending with node id as the deterministic tie-break.
type Candidate struct {
	NodeID         string
	StructureScore float64
	DetailScore    float64
	FusedScore     float64
	HasDetail      bool
}

// Result is the outcome of one locate call.
type Result struct {
	// NodeID is empty when no location could be determined and no previous
	// session location exists.
	NodeID     string
	NodeName   string
	Confidence float64
	Margin     float64
	Candidates []Candidate
	// UpdatedSession reports whether this result mutated session state.
	// Low-confidence and fail-closed results never do.
	UpdatedSession bool
}
