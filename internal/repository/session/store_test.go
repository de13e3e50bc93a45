package session

import (
	"context"
	"testing"
	"time"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/db/memory"
	domsession "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/session"
)

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(memory.NewStore(), 0)

	state := domsession.New("u1")
	state.Record("lobby", 0.8, "left", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err := s.Put(ctx, state); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("session not found after put")
	}
	if got.CurrentLocation != "lobby" || got.LastConfidence() != 0.8 {
		t.Fatalf("state = %+v", got)
	}
	if len(got.LocationHistory) != 1 {
		t.Fatalf("history = %+v", got.LocationHistory)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := New(memory.NewStore(), 0)
	_, found, err := s.Get(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("missing session reported as found")
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := New(memory.NewStore(), 0)
	_ = s.Put(ctx, domsession.New("u1"))

	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.Get(ctx, "u1"); found {
		t.Fatal("session survived delete")
	}
	// Unknown sessions delete cleanly.
	if err := s.Delete(ctx, "ghost"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestStore_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewStore()
	s := New(kv, 0)

	_ = kv.Set(ctx, keyPrefix+"u1", []byte("{not json"))
	if _, _, err := s.Get(ctx, "u1"); err == nil {
		t.Fatal("expected decode error")
	}
}
