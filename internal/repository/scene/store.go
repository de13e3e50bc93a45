// Package scene loads per-site topology and detail files into the normalized
// domain model. Loading is the normalization boundary: downstream code never
// sees the loose on-disk shapes (bare-string nodes, key=value blobs, legacy
// node references).
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/metrics"
)

// FileStore loads scenes from <dir>/<scene>/{topology.json,details.json} and
// memoizes them. Loaded scenes are read-only and safe for concurrent use.
type FileStore struct {
	dir    string
	strict bool
	embed  domain.Embedder
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*domscene.Scene
}

// NewFileStore creates a scene store rooted at dir. When strict is true, a
// detail entry whose node reference cannot be resolved fails the whole load;
// otherwise the entry is dropped with a warning.
func NewFileStore(dir string, strict bool, logger *zap.Logger) *FileStore {
	return &FileStore{
		dir:    dir,
		strict: strict,
		logger: logger,
		cache:  make(map[string]*domscene.Scene),
	}
}

// WithEmbedder enables best-effort embedding backfill for detail entries
// that ship without a precomputed vector.
func (s *FileStore) WithEmbedder(e domain.Embedder) *FileStore {
	s.embed = e
	return s
}

// Scene returns the memoized scene, loading it on first use. The lock covers
// the whole load so concurrent first requests parse the files exactly once.
func (s *FileStore) Scene(ctx context.Context, id string) (*domscene.Scene, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return nil, fmt.Errorf("invalid scene id %q: %w", id, domain.ErrSceneNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok := s.cache[id]; ok {
		metrics.SceneLoadsTotal.WithLabelValues("hit").Inc()
		return sc, nil
	}

	sc, err := s.load(ctx, id)
	if err != nil {
		metrics.SceneLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.SceneLoadsTotal.WithLabelValues("load").Inc()
	s.cache[id] = sc
	return sc, nil
}

// HealthCheck verifies the scene data directory is readable.
func (s *FileStore) HealthCheck(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("scene dir %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scene dir %s is not a directory", s.dir)
	}
	return nil
}

// --- on-disk shapes ---

type topologyFile struct {
	Nodes   []json.RawMessage `json:"nodes"`
	Edges   []edgeRecord      `json:"edges"`
	Aliases map[string]string `json:"aliases"`
	Names   map[string]string `json:"names"`
}

type nodeRecord struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	IndexTerms    []string `json:"index_terms"`
	Tags          []string `json:"tags"`
	NegativeTerms []string `json:"negative_terms"`
	Bearing       string   `json:"bearing"`
}

type edgeRecord struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type detailRecord struct {
	ID               string            `json:"id"`
	NodeID           string            `json:"node_id"`
	Text             string            `json:"text"`
	StructuredText   string            `json:"structured_text"`
	SpatialRelations map[string]string `json:"spatial_relations"`
	UniqueFeatures   []string          `json:"unique_features"`
	Embedding        []float32         `json:"embedding"`
}

func (s *FileStore) load(ctx context.Context, id string) (*domscene.Scene, error) {
	topoPath := filepath.Join(s.dir, id, "topology.json")
	data, err := os.ReadFile(filepath.Clean(topoPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", topoPath, domain.ErrSceneNotFound)
		}
		return nil, fmt.Errorf("read topology %s: %w", topoPath, err)
	}

	var topo topologyFile
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("parse topology %s: %w", topoPath, err)
	}

	nodes, err := normalizeNodes(topo)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", topoPath, err)
	}
	if len(nodes) == 0 {
		// Distinct signal: the fusion pipeline fails closed on this, it must
		// not look like a legal empty result.
		return nil, fmt.Errorf("topology %s: %w", topoPath, domain.ErrEmptyTopology)
	}

	edges := make([][2]string, 0, len(topo.Edges))
	for _, e := range topo.Edges {
		edges = append(edges, [2]string{e.From, e.To})
	}

	sc, err := domscene.New(id, nodes, edges, topo.Aliases)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", topoPath, err)
	}

	if err := s.loadDetails(ctx, sc, filepath.Join(s.dir, id, "details.json")); err != nil {
		return nil, err
	}
	return sc, nil
}

// normalizeNodes accepts both shapes the data pipeline produces: full node
// objects and bare identifier strings with names in a side table.
func normalizeNodes(topo topologyFile) ([]domscene.Node, error) {
	nodes := make([]domscene.Node, 0, len(topo.Nodes))
	for i, raw := range topo.Nodes {
		var bare string
		if err := json.Unmarshal(raw, &bare); err == nil {
			name := topo.Names[bare]
			if name == "" {
				name = bare
			}
			nodes = append(nodes, domscene.Node{ID: bare, Name: name})
			continue
		}

		var rec nodeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("node %d: not a string or object: %w", i, err)
		}
		name := rec.Name
		if name == "" {
			name = topo.Names[rec.ID]
		}
		if name == "" {
			name = rec.ID
		}
		nodes = append(nodes, domscene.Node{
			ID:            rec.ID,
			Name:          name,
			IndexTerms:    rec.IndexTerms,
			Tags:          rec.Tags,
			NegativeTerms: rec.NegativeTerms,
			Bearing:       rec.Bearing,
		})
	}
	return nodes, nil
}

func (s *FileStore) loadDetails(ctx context.Context, sc *domscene.Scene, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			// Legal degraded state: the detail channel contributes nothing.
			s.logger.Warn("Scene has no detail file", zap.String("scene", sc.ID()))
			return nil
		}
		return fmt.Errorf("read details %s: %w", path, err)
	}

	var records []detailRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse details %s: %w", path, err)
	}

	for i, rec := range records {
		nodeID, ok := sc.Resolve(rec.NodeID)
		if !ok {
			if s.strict {
				return fmt.Errorf("details %s: entry %d node_id %q: %w",
					path, i, rec.NodeID, domain.ErrDetailRefUnresolved)
			}
			metrics.DetailRefsDroppedTotal.Inc()
			s.logger.Warn("Dropping detail entry with unresolvable node reference",
				zap.String("scene", sc.ID()),
				zap.String("node_id", rec.NodeID),
				zap.Int("entry", i),
			)
			continue
		}

		entry := domscene.DetailEntry{
			ID:               rec.ID,
			NodeID:           nodeID,
			Text:             rec.Text,
			Structured:       parseStructured(rec.StructuredText),
			SpatialRelations: rec.SpatialRelations,
			UniqueFeatures:   rec.UniqueFeatures,
			Embedding:        rec.Embedding,
		}
		if entry.ID == "" {
			entry.ID = fmt.Sprintf("%s#%d", nodeID, i)
		}
		if len(entry.Embedding) == 0 && s.embed != nil && entry.Text != "" {
			res, err := s.embed.Embed(ctx, entry.Text)
			if err != nil {
				s.logger.Warn("Embedding backfill failed, entry stays lexical-only",
					zap.String("entry", entry.ID), zap.Error(err))
			} else {
				entry.Embedding = res.Embedding
			}
		}
		sc.AttachDetail(entry)
	}
	return nil
}

// parseStructured splits a "key=value; key=value" feature blob into a map.
// Both ";" and "," separate pairs in the wild.
func parseStructured(text string) map[string]string {
	if text == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ';' || r == ',' }) {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.ToLower(strings.TrimSpace(value))
		if key != "" && value != "" {
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
