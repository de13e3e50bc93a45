package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched lengths", []float32{1, 2}, []float32{1}, 0},
		{"empty", nil, nil, 0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Cosine = %g, want %g", got, tt.want)
			}
		})
	}
}

type captureEmbedder struct {
	gotText string
	err     error
}

func (c *captureEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	c.gotText = text
	if c.err != nil {
		return EmbeddingResult{}, c.err
	}
	return EmbeddingResult{Embedding: []float32{1}}, nil
}

func TestInstructionEmbedder_Prepends(t *testing.T) {
	inner := &captureEmbedder{}
	e := NewInstructionEmbedder(inner, "query: ")

	if _, err := e.Embed(context.Background(), "where am i"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.gotText != "query: where am i" {
		t.Fatalf("inner text = %q", inner.gotText)
	}
}

func TestInstructionEmbedder_WrapsError(t *testing.T) {
	cause := errors.New("boom")
	e := NewInstructionEmbedder(&captureEmbedder{err: cause}, "query: ")

	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, cause) {
		t.Fatalf("error %v does not wrap cause", err)
	}
}
