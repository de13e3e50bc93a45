// Package locate implements the dual-channel retrieval fusion engine: a
// structure channel over the coarse topology and a detail channel over
// per-photo descriptions, calibrated independently, fused in log-odds space
// with entropy-derived weights, sharpened, and turned into a
// (location, confidence, margin) decision with session continuity.
package locate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domlocate "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/locate"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
	domsession "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/session"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/metrics"
)

// Service is the fusion engine. One instance holds its calibration
// parameters explicitly; session state is read from and written to the
// injected store, never to process-wide globals. The fusion computation
// itself is pure and request-scoped.
type Service struct {
	scenes   SceneStore
	sessions SessionStore
	embed    Embedder // may be nil: detail channel degrades to lexical-only
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	// Per-session mutual exclusion: two photos from the same user must not
	// race to update current_location. Cross-session calls run in parallel.
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// New creates the fusion engine.
func New(scenes SceneStore, sessions SessionStore, embed Embedder, cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("fusion config: %w", err)
	}
	return &Service{
		scenes:   scenes,
		sessions: sessions,
		embed:    embed,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Locate runs the full pipeline for one caption. Deterministic for a fixed
// (query, scene snapshot, session snapshot); numeric edge cases are handled
// locally and never surface as errors. Only a structurally missing scene
// with no session fallback is a caller-visible error.
func (s *Service) Locate(ctx context.Context, queryText, sceneID, sessionID string) (domlocate.Result, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, found, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.logger.Warn("Session read failed, treating as new session",
			zap.String("session", sessionID), zap.Error(err))
		found = false
	}
	if !found {
		sess = domsession.New(sessionID)
	}

	sc, err := s.scenes.Scene(ctx, sceneID)
	if err != nil {
		return s.failClosed(&sess, sceneID, err)
	}

	res, dec := s.fuse(ctx, queryText, sc, &sess)

	outcome := "low_confidence"
	if dec.ShouldUpdate && res.NodeID != "" {
		q := parseQuery(queryText)
		sess.Record(res.NodeID, dec.Confidence, q.orientation, s.now())
		if err := s.sessions.Put(ctx, sess); err != nil {
			s.logger.Error("Session update failed", zap.String("session", sessionID), zap.Error(err))
		} else {
			res.UpdatedSession = true
			outcome = "updated"
		}
	}

	metrics.LocateRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.LocateConfidence.Observe(res.Confidence)
	return res, nil
}

// fuse runs the request-scoped pipeline: score, calibrate, fuse, sharpen,
// decide. It never mutates the session.
func (s *Service) fuse(ctx context.Context, queryText string, sc *domscene.Scene, sess *domsession.State) (domlocate.Result, decision) {
	q := parseQuery(queryText)
	nodes := sc.Nodes()
	prev := sess.CurrentLocation

	// Structure channel. A scorer panic on malformed input makes the
	// channel uninformative (uniform), not the call fail: the entropy
	// weighting then drives its weight to the floor.
	structRaw, structOK := s.scoreStructureSafe(q, nodes)
	structScores := make([]float64, len(nodes))
	if structOK {
		for i, n := range nodes {
			structScores[i] = structRaw[n.ID]
		}
	}
	structP := softmax(structScores, s.cfg.StructureTemperature)
	if !structOK {
		structP = uniform(len(nodes))
	}

	// Detail channel. The semantic term needs the query vector; an embedder
	// failure just drops that term.
	var queryVec []float32
	if s.embed != nil {
		res, err := s.embed.Embed(ctx, q.raw)
		if err != nil {
			s.logger.Warn("Query embedding failed, detail channel is lexical-only", zap.Error(err))
		} else {
			queryVec = res.Embedding
		}
	}

	structTrust := make(map[string]float64, len(nodes))
	for i, n := range nodes {
		structTrust[n.ID] = structP[i]
	}

	entriesByNode := make(map[string][]domscene.DetailEntry)
	for _, n := range nodes {
		if entries := sc.DetailsFor(n.ID); len(entries) > 0 {
			entriesByNode[n.ID] = entries
		}
	}

	detailRaw, detailOK := s.scoreDetailsSafe(q, entriesByNode, queryVec, structTrust)
	detailP := alignDetail(nodes, detailRaw, detailOK, s.cfg)

	metrics.ChannelEntropy.WithLabelValues("structure").Observe(normalizedEntropy(structP))
	metrics.ChannelEntropy.WithLabelValues("detail").Observe(normalizedEntropy(detailP))

	// Continuity prior, bounded per candidate.
	bonus := make([]float64, len(nodes))
	for i, n := range nodes {
		bonus[i] = continuityBonus(s.cfg, sc, q, n, prev)
	}

	fused, info := fuseChannels(structP, detailP, bonus, s.cfg)
	final := sharpen(fused, s.cfg)

	candidates := make([]domlocate.Candidate, len(nodes))
	for i, n := range nodes {
		candidates[i] = domlocate.Candidate{
			NodeID:         n.ID,
			StructureScore: structScores[i],
			DetailScore:    detailRaw[n.ID],
			FusedScore:     final[i],
			HasDetail:      len(entriesByNode[n.ID]) > 0,
		}
	}
	// Deterministic ranking: fused score descending, node id ascending on
	// ties (this is where structure-score ties finally break, with
	// continuity already folded in).
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})

	structTopID, detailTopID := "", ""
	if info.StructureTop >= 0 {
		structTopID = nodes[info.StructureTop].ID
	}
	if info.DetailTop >= 0 {
		detailTopID = nodes[info.DetailTop].ID
	}

	dec := decide(s.cfg, candidates, info, structTopID, detailTopID, sc, prev)

	if len(candidates) > s.cfg.MaxCandidates {
		candidates = candidates[:s.cfg.MaxCandidates]
	}

	res := domlocate.Result{
		NodeID:     candidates[0].NodeID,
		Confidence: dec.Confidence,
		Margin:     dec.Margin,
		Candidates: candidates,
	}
	if n, ok := sc.Node(res.NodeID); ok {
		res.NodeName = n.Name
	}
	return res, dec
}

// failClosed maps a broken or missing scene to last-known-good. An unknown
// scene with no session fallback is the one caller-visible error.
func (s *Service) failClosed(sess *domsession.State, sceneID string, cause error) (domlocate.Result, error) {
	if sess.Located() {
		s.logger.Warn("Scene unavailable, returning last known location",
			zap.String("scene", sceneID), zap.Error(cause))
		metrics.LocateRequestsTotal.WithLabelValues("fail_closed").Inc()
		return domlocate.Result{
			NodeID:     sess.CurrentLocation,
			Confidence: sess.LastConfidence(),
		}, nil
	}
	if errors.Is(cause, domain.ErrEmptyTopology) {
		s.logger.Error("Scene topology is empty", zap.String("scene", sceneID))
		metrics.LocateRequestsTotal.WithLabelValues("fail_closed").Inc()
		return domlocate.Result{}, nil
	}
	metrics.LocateRequestsTotal.WithLabelValues("error").Inc()
	return domlocate.Result{}, fmt.Errorf("load scene %s: %w", sceneID, cause)
}

func (s *Service) scoreStructureSafe(q query, nodes []*domscene.Node) (scores map[string]float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Structure scorer panicked, channel treated as uninformative", zap.Any("panic", r))
			scores, ok = map[string]float64{}, false
		}
	}()
	return scoreStructure(s.cfg, q, nodes), true
}

func (s *Service) scoreDetailsSafe(
	q query, entriesByNode map[string][]domscene.DetailEntry,
	queryVec []float32, structTrust map[string]float64,
) (scores map[string]float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Detail scorer panicked, channel treated as uninformative", zap.Any("panic", r))
			scores, ok = map[string]float64{}, false
		}
	}()
	return scoreDetails(s.cfg, q, entriesByNode, queryVec, structTrust), true
}

// alignDetail builds the detail distribution over the full candidate
// ordering. Nodes with no detail entries get probability 0 (the channel has
// nothing to say about them); if no node has entries, every entry scored
// zero, or the scorer failed, the whole channel is uniform, i.e.
// uninformative.
func alignDetail(nodes []*domscene.Node, raw map[string]float64, ok bool, cfg Config) []float64 {
	if !ok || len(raw) == 0 {
		return uniform(len(nodes))
	}
	maxRaw := 0.0
	for _, v := range raw {
		if v > maxRaw {
			maxRaw = v
		}
	}
	if maxRaw <= 0 {
		return uniform(len(nodes))
	}

	withDetail := make([]float64, 0, len(raw))
	idx := make([]int, 0, len(raw))
	for i, n := range nodes {
		if v, has := raw[n.ID]; has {
			withDetail = append(withDetail, v)
			idx = append(idx, i)
		}
	}

	sub := softmax(withDetail, cfg.DetailTemperature)
	out := make([]float64, len(nodes))
	for k, i := range idx {
		out[i] = sub[k]
	}
	return out
}

func uniform(n int) []float64 {
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

func (s *Service) sessionLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}
