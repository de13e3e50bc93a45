package scene

import (
	"fmt"
	"sort"
	"strings"
)

// Scene is the read-only aggregate of one site's topology and details.
// Safe for unsynchronized concurrent reads after construction.
type Scene struct {
	id      string
	nodes   map[string]*Node
	order   []string
	details map[string][]DetailEntry
	aliases map[string]string
}

// New builds a scene from normalized nodes, undirected edges, and an alias
// table mapping legacy identifiers to canonical node ids. Edge endpoints must
// exist; the derived neighbor relation is symmetric.
func New(id string, nodes []Node, edges [][2]string, aliases map[string]string) (*Scene, error) {
	s := &Scene{
		id:      id,
		nodes:   make(map[string]*Node, len(nodes)),
		details: make(map[string][]DetailEntry),
		aliases: make(map[string]string, len(aliases)),
	}
	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d has empty id", i)
		}
		if _, dup := s.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %q", n.ID)
		}
		n.Neighbors = nil
		s.nodes[n.ID] = &n
		s.order = append(s.order, n.ID)
	}
	sort.Strings(s.order)

	for _, e := range edges {
		from, to := s.nodes[e[0]], s.nodes[e[1]]
		if from == nil || to == nil {
			return nil, fmt.Errorf("edge %s--%s references unknown node", e[0], e[1])
		}
		if e[0] == e[1] {
			continue
		}
		from.Neighbors = appendUnique(from.Neighbors, e[1])
		to.Neighbors = appendUnique(to.Neighbors, e[0])
	}
	for _, id := range s.order {
		sort.Strings(s.nodes[id].Neighbors)
	}

	for alt, canonical := range aliases {
		if _, ok := s.nodes[canonical]; !ok {
			return nil, fmt.Errorf("alias %q maps to unknown node %q", alt, canonical)
		}
		s.aliases[normalizeID(alt)] = canonical
	}
	return s, nil
}

// ID returns the scene identifier.
func (s *Scene) ID() string { return s.id }

// Len returns the number of topology nodes.
func (s *Scene) Len() int { return len(s.nodes) }

// Node looks a node up by canonical id or alias.
func (s *Scene) Node(id string) (*Node, bool) {
	if n, ok := s.nodes[id]; ok {
		return n, true
	}
	if canonical, ok := s.aliases[normalizeID(id)]; ok {
		return s.nodes[canonical], true
	}
	return nil, false
}

// Nodes returns all nodes in deterministic (id-sorted) order.
func (s *Scene) Nodes() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// Neighbors returns the direct topological neighbors of a node.
func (s *Scene) Neighbors(id string) []string {
	n, ok := s.Node(id)
	if !ok {
		return nil
	}
	return n.Neighbors
}

// IsNeighbor reports whether a and b share an edge.
func (s *Scene) IsNeighbor(a, b string) bool {
	n, ok := s.Node(a)
	if !ok {
		return false
	}
	for _, id := range n.Neighbors {
		if id == b {
			return true
		}
	}
	return false
}

// IsSecondNeighbor reports whether b is a neighbor-of-neighbor of a
// (excluding a itself and direct neighbors).
func (s *Scene) IsSecondNeighbor(a, b string) bool {
	if a == b || s.IsNeighbor(a, b) {
		return false
	}
	n, ok := s.Node(a)
	if !ok {
		return false
	}
	for _, mid := range n.Neighbors {
		if s.IsNeighbor(mid, b) {
			return true
		}
	}
	return false
}

// AttachDetail appends a detail entry under its (already resolved) node id.
func (s *Scene) AttachDetail(entry DetailEntry) {
	s.details[entry.NodeID] = append(s.details[entry.NodeID], entry)
}

// DetailsFor returns the detail entries describing a node. Zero entries is a
// degraded-but-legal state: the detail channel contributes nothing for it.
func (s *Scene) DetailsFor(nodeID string) []DetailEntry {
	if n, ok := s.Node(nodeID); ok {
		return s.details[n.ID]
	}
	return nil
}

// Resolve maps an arbitrary node reference to a canonical id. Resolution
// order: canonical id, alias table, then keyword matching of the reference
// against node ids, names, and index terms (longest match wins, ties broken
// by id). The keyword fallback keeps legacy references like
// "entrance_cam03" usable instead of dropping them.
func (s *Scene) Resolve(ref string) (string, bool) {
	if n, ok := s.Node(ref); ok {
		return n.ID, true
	}
	norm := normalizeID(ref)
	if norm == "" {
		return "", false
	}

	best, bestLen := "", 0
	for _, id := range s.order {
		n := s.nodes[id]
		candidates := make([]string, 0, 2+len(n.IndexTerms))
		candidates = append(candidates, normalizeID(n.ID), normalizeID(n.Name))
		for _, t := range n.IndexTerms {
			candidates = append(candidates, normalizeID(t))
		}
		for _, c := range candidates {
			if c == "" || !strings.Contains(norm, c) {
				continue
			}
			if len(c) > bestLen {
				best, bestLen = id, len(c)
			}
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func normalizeID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
