package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domlocate "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/locate"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
	domsession "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/session"
	healthuc "github.com/LarryYiGuo/TextNavi-sub000/internal/usecase/health"
)

type mockLocator struct {
	result domlocate.Result
	err    error

	gotQuery, gotScene, gotSession string
}

func (m *mockLocator) Locate(_ context.Context, query, sceneID, sessionID string) (domlocate.Result, error) {
	m.gotQuery, m.gotScene, m.gotSession = query, sceneID, sessionID
	return m.result, m.err
}

type mockSessionStore struct {
	state  domsession.State
	found  bool
	getErr error
	delErr error

	deleted string
}

func (m *mockSessionStore) Get(_ context.Context, _ string) (domsession.State, bool, error) {
	return m.state, m.found, m.getErr
}

func (m *mockSessionStore) Delete(_ context.Context, id string) error {
	m.deleted = id
	return m.delErr
}

type mockSceneStore struct {
	scene *domscene.Scene
	err   error
}

func (m *mockSceneStore) Scene(context.Context, string) (*domscene.Scene, error) {
	return m.scene, m.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func newRouter(t *testing.T, loc Locator, sess SessionStore, scenes SceneStore, db healthuc.DBPinger) http.Handler {
	t.Helper()
	if loc == nil {
		loc = &mockLocator{}
	}
	if sess == nil {
		sess = &mockSessionStore{}
	}
	if scenes == nil {
		scenes = &mockSceneStore{}
	}
	if db == nil {
		db = stubPinger{}
	}
	srv := NewServer(loc, sess, scenes, healthuc.New(db, nil, nil), zap.NewNop())
	r := chi.NewRouter()
	srv.Register(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleLocate_OK(t *testing.T) {
	loc := &mockLocator{result: domlocate.Result{
		NodeID:     "lab",
		NodeName:   "Research Lab",
		Confidence: 0.91,
		Margin:     0.4,
		Candidates: []domlocate.Candidate{
			{NodeID: "lab", FusedScore: 0.8},
			{NodeID: "lobby", FusedScore: 0.4},
		},
		UpdatedSession: true,
	}}
	h := newRouter(t, loc, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/locate",
		`{"query": "a 3d printer", "scene_id": "office", "session_id": "u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if loc.gotQuery != "a 3d printer" || loc.gotScene != "office" || loc.gotSession != "u1" {
		t.Fatalf("locator args = %q %q %q", loc.gotQuery, loc.gotScene, loc.gotSession)
	}

	var resp locateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NodeID == nil || *resp.NodeID != "lab" {
		t.Fatalf("node_id = %v", resp.NodeID)
	}
	if resp.Confidence != 0.91 || !resp.UpdatedSession {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.Candidates) != 2 || resp.Candidates[0].ID != "lab" {
		t.Fatalf("candidates = %+v", resp.Candidates)
	}
}

func TestHandleLocate_NullNodeID(t *testing.T) {
	// Fail-closed empty result: node_id must serialize as JSON null, not "".
	h := newRouter(t, &mockLocator{result: domlocate.Result{}}, nil, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/locate",
		`{"query": "q", "scene_id": "s", "session_id": "u"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["node_id"]) != "null" {
		t.Fatalf("node_id = %s, want null", raw["node_id"])
	}
}

func TestHandleLocate_BadRequest(t *testing.T) {
	h := newRouter(t, nil, nil, nil, nil)

	tests := []struct {
		name, body string
	}{
		{"malformed json", `{`},
		{"missing query", `{"scene_id": "s", "session_id": "u"}`},
		{"missing scene", `{"query": "q", "session_id": "u"}`},
		{"missing session", `{"query": "q", "scene_id": "s"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/v1/locate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != "bad_request" {
				t.Fatalf("code = %q", resp.Code)
			}
		})
	}
}

func TestHandleLocate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"scene not found", domain.ErrSceneNotFound, http.StatusNotFound, "scene_not_found"},
		{"empty topology", domain.ErrEmptyTopology, http.StatusUnprocessableEntity, "empty_topology"},
		{"provider down", domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"},
		{"unknown error", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(t, &mockLocator{err: tt.err}, nil, nil, nil)
			rec := doJSON(t, h, http.MethodPost, "/v1/locate",
				`{"query": "q", "scene_id": "s", "session_id": "u"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestHandleGetSession(t *testing.T) {
	state := domsession.New("u1")
	state.CurrentLocation = "lab"
	h := newRouter(t, nil, &mockSessionStore{state: state, found: true}, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/sessions/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got domsession.State
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CurrentLocation != "lab" {
		t.Fatalf("state = %+v", got)
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	h := newRouter(t, nil, &mockSessionStore{found: false}, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/v1/sessions/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDeleteSession(t *testing.T) {
	store := &mockSessionStore{}
	h := newRouter(t, nil, store, nil, nil)

	rec := doJSON(t, h, http.MethodDelete, "/v1/sessions/u1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if store.deleted != "u1" {
		t.Fatalf("deleted = %q", store.deleted)
	}
}

func TestHandleListNodes(t *testing.T) {
	sc, err := domscene.New("hq",
		[]domscene.Node{
			{ID: "lab", Name: "Lab", Tags: []string{"workshop"}},
			{ID: "lobby", Name: "Lobby"},
		},
		[][2]string{{"lab", "lobby"}},
		nil,
	)
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	h := newRouter(t, nil, nil, &mockSceneStore{scene: sc}, nil)

	rec := doJSON(t, h, http.MethodGet, "/v1/scenes/hq/nodes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var nodes []nodeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &nodes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nodes) != 2 || nodes[0].ID != "lab" || nodes[0].Neighbors[0] != "lobby" {
		t.Fatalf("nodes = %+v", nodes)
	}
}

func TestHandleListNodes_SceneNotFound(t *testing.T) {
	h := newRouter(t, nil, nil, &mockSceneStore{err: domain.ErrSceneNotFound}, nil)
	rec := doJSON(t, h, http.MethodGet, "/v1/scenes/ghost/nodes", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newRouter(t, nil, nil, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	degraded := newRouter(t, nil, nil, nil, stubPinger{err: errors.New("down")})
	rec = doJSON(t, degraded, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
