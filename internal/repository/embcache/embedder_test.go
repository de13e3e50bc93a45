package embcache

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/db/memory"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
)

type countingEmbedder struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	c.calls++
	if c.err != nil {
		return domain.EmbeddingResult{}, c.err
	}
	return domain.EmbeddingResult{Embedding: c.vec, TotalTokens: 7}, nil
}

func TestCachedEmbedder_SecondCallHitsCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{vec: []float32{0.1, -2.5, 3}}
	c := New(inner, memory.NewStore(), "model-a", nil, zap.NewNop())

	first, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if !reflect.DeepEqual(first.Embedding, second.Embedding) {
		t.Fatalf("cached vector differs: %v vs %v", first.Embedding, second.Embedding)
	}
	// Cache hits consume no provider tokens.
	if second.TotalTokens != 0 {
		t.Fatalf("cached TotalTokens = %d, want 0", second.TotalTokens)
	}
}

func TestCachedEmbedder_ModelChangeMisses(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()

	a := &countingEmbedder{vec: []float32{1}}
	_, _ = New(a, kv, "model-a", nil, zap.NewNop()).Embed(ctx, "hello")

	b := &countingEmbedder{vec: []float32{2}}
	res, err := New(b, kv, "model-b", nil, zap.NewNop()).Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if b.calls != 1 {
		t.Fatalf("model-b must miss the model-a cache entry")
	}
	if res.Embedding[0] != 2 {
		t.Fatalf("served stale vector %v", res.Embedding)
	}
}

func TestCachedEmbedder_InnerErrorPropagates(t *testing.T) {
	cause := errors.New("provider down")
	c := New(&countingEmbedder{err: cause}, memory.NewStore(), "m", nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, cause) {
		t.Fatalf("err = %v, want wrapped cause", err)
	}
}

func TestVectorCodecRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -3.25, float32(math.Pi)}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip %v -> %v", in, out)
	}
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error on truncated data")
	}
}
