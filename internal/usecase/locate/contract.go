package locate

import (
	"context"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domscene "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/scene"
	domsession "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/session"
)

// SceneStore provides read access to loaded scenes.
type SceneStore interface {
	Scene(ctx context.Context, id string) (*domscene.Scene, error)
}

// SessionStore reads and writes per-session state.
type SessionStore interface {
	Get(ctx context.Context, id string) (domsession.State, bool, error)
	Put(ctx context.Context, state domsession.State) error
}

// Embedder vectorizes the query text for the detail channel's semantic
// similarity. Optional: a nil embedder degrades the detail channel to
// lexical-only scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
