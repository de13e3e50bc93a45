// Package chi exposes the localization API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domlocate "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/locate"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
	domsession "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/session"
	healthuc "github.com/LarryYiGuo/TextNavi-sub000/internal/usecase/health"
)

// Locator runs the fusion pipeline for one caption.
type Locator interface {
	Locate(ctx context.Context, queryText, sceneID, sessionID string) (domlocate.Result, error)
}

// SessionStore reads and ends sessions.
type SessionStore interface {
	Get(ctx context.Context, id string) (domsession.State, bool, error)
	Delete(ctx context.Context, id string) error
}

// SceneStore reads loaded scenes for the topology listing.
type SceneStore interface {
	Scene(ctx context.Context, id string) (*domscene.Scene, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	locator       Locator
	sessions      SessionStore
	scenes        SceneStore
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	locator Locator,
	sessions SessionStore,
	scenes SceneStore,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		locator:  locator,
		sessions: sessions,
		scenes:   scenes,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSceneNotFound, http.StatusNotFound, "scene_not_found"),
		sentinelHandler(domain.ErrEmptyTopology, http.StatusUnprocessableEntity, "empty_topology"),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, "session_not_found"),
		sentinelHandler(domain.ErrDetailRefUnresolved, http.StatusUnprocessableEntity, "detail_ref_unresolved"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Post("/v1/locate", s.handleLocate)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Delete("/v1/sessions/{id}", s.handleDeleteSession)
	r.Get("/v1/scenes/{id}/nodes", s.handleListNodes)
	r.Get("/health", s.handleHealth)
}

// --- wire shapes ---

type locateRequest struct {
	Query     string `json:"query"`
	SceneID   string `json:"scene_id"`
	SessionID string `json:"session_id"`
}

type candidateResponse struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

type locateResponse struct {
	NodeID         *string             `json:"node_id"`
	NodeName       string              `json:"node_name,omitempty"`
	Confidence     float64             `json:"confidence"`
	Margin         float64             `json:"margin"`
	Candidates     []candidateResponse `json:"candidates"`
	UpdatedSession bool                `json:"updated_session"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleLocate handles POST /v1/locate.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" || req.SceneID == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query, scene_id and session_id are required")
		return
	}

	result, err := s.locator.Locate(r.Context(), req.Query, req.SceneID, req.SessionID)
	if err != nil {
		s.handleError(w, err, "locate failed")
		return
	}

	resp := locateResponse{
		NodeName:       result.NodeName,
		Confidence:     result.Confidence,
		Margin:         result.Margin,
		Candidates:     make([]candidateResponse, 0, len(result.Candidates)),
		UpdatedSession: result.UpdatedSession,
	}
	if result.NodeID != "" {
		resp.NodeID = &result.NodeID
	}
	for _, c := range result.Candidates {
		resp.Candidates = append(resp.Candidates, candidateResponse{ID: c.NodeID, Score: c.FusedScore})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetSession handles GET /v1/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, found, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleError(w, err, "get session failed")
		return
	}
	if !found {
		s.handleError(w, domain.ErrSessionNotFound, "get session failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleDeleteSession handles DELETE /v1/sessions/{id} (session end).
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleError(w, err, "delete session failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type nodeResponse struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Neighbors []string `json:"neighbors,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// handleListNodes handles GET /v1/scenes/{id}/nodes (debug/ops view of the
// normalized topology).
func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scenes.Scene(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, err, "load scene failed")
		return
	}
	nodes := sc.Nodes()
	resp := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		resp = append(resp, nodeResponse{
			ID: n.ID, Name: n.Name, Neighbors: n.Neighbors, Tags: n.Tags,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleError walks the sentinel chain; anything unmatched is a 500.
func (s *Server) handleError(w http.ResponseWriter, err error, msg string) {
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
