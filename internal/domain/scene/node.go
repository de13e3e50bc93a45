// Package scene holds the normalized in-memory model of one mapped indoor
// space: the coarse topology graph and the fine-grained detail entries tied
// to its nodes. Everything downstream of the loader depends only on these
// types.
package scene

// Node is one location in the topology graph.
type Node struct {
	ID            string
	Name          string
	IndexTerms    []string
	Tags          []string
	NegativeTerms []string
	// Bearing is an optional orientation hint relative to the main walking
	// direction ("left", "right", "ahead", "behind").
	Bearing   string
	Neighbors []string
}

// DetailEntry is one per-photo natural-language description of a node.
type DetailEntry struct {
	ID     string
	NodeID string
	Text   string
	// Structured holds the parsed key=value feature list, already split by
	// the loader.
	Structured map[string]string
	// SpatialRelations maps a direction word to the landmark seen there.
	SpatialRelations map[string]string
	UniqueFeatures   []string
	// Embedding is the precomputed vector for Text, if available.
	Embedding []float32
}
