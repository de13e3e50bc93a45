// Package session holds per-user localization state. State is mutated only
// by the decision layer, and only on confident results.
package session

import "time"

// HistoryLimit bounds every per-session history list.
const HistoryLimit = 10

// Fix is one accepted localization result.
type Fix struct {
	NodeID     string    `json:"node_id"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// State is the per-session record of where the user is and how we got there.
type State struct {
	ID                 string    `json:"id"`
	CurrentLocation    string    `json:"current_location,omitempty"`
	LocationHistory    []Fix     `json:"location_history,omitempty"`
	OrientationHistory []string  `json:"orientation_history,omitempty"`
	ConfidenceHistory  []float64 `json:"confidence_history,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// New creates an uninitialized session.
func New(id string) State {
	return State{ID: id}
}

// Located reports whether the session has a known current location.
func (s *State) Located() bool { return s.CurrentLocation != "" }

// LastConfidence returns the confidence of the most recent accepted fix,
// or 0 for an uninitialized session.
func (s *State) LastConfidence() float64 {
	if len(s.ConfidenceHistory) == 0 {
		return 0
	}
	return s.ConfidenceHistory[len(s.ConfidenceHistory)-1]
}

// Record accepts a confident localization result and appends it to the
// bounded histories. Callers must ensure the result passed the confidence
// threshold; low-confidence results never reach this method.
func (s *State) Record(nodeID string, confidence float64, orientation string, now time.Time) {
	s.CurrentLocation = nodeID
	s.UpdatedAt = now
	s.LocationHistory = append(s.LocationHistory, Fix{
		NodeID: nodeID, Confidence: confidence, Timestamp: now,
	})
	s.ConfidenceHistory = append(s.ConfidenceHistory, confidence)
	if orientation != "" {
		s.OrientationHistory = append(s.OrientationHistory, orientation)
	}
	s.LocationHistory = trimFixes(s.LocationHistory)
	s.ConfidenceHistory = trimFloats(s.ConfidenceHistory)
	s.OrientationHistory = trimStrings(s.OrientationHistory)
}

// Clone returns a deep copy, so callers can hand out snapshots without
// exposing the mutable histories.
func (s *State) Clone() State {
	out := *s
	out.LocationHistory = append([]Fix(nil), s.LocationHistory...)
	out.OrientationHistory = append([]string(nil), s.OrientationHistory...)
	out.ConfidenceHistory = append([]float64(nil), s.ConfidenceHistory...)
	return out
}

func trimFixes(v []Fix) []Fix {
	if len(v) > HistoryLimit {
		return append(v[:0], v[len(v)-HistoryLimit:]...)
	}
	return v
}

func trimFloats(v []float64) []float64 {
	if len(v) > HistoryLimit {
		return append(v[:0], v[len(v)-HistoryLimit:]...)
	}
	return v
}

func trimStrings(v []string) []string {
	if len(v) > HistoryLimit {
		return append(v[:0], v[len(v)-HistoryLimit:]...)
	}
	return v
}
