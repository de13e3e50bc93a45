// Package session persists session state as JSON in the KV store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LarryYiGuo/TextNavi-sub000/internal/db"
	"github.com/LarryYiGuo/TextNavi-sub000/internal/domain"
	domsession "github.com/LarryYiGuo/TextNavi-sub000/internal/domain/session"
)

const keyPrefix = domain.KeyPrefix + "session:"

// Store reads and writes session state.
type Store struct {
	kv  db.KVStore
	ttl time.Duration
}

// New creates a session store. Sessions expire after ttl of inactivity;
// ttl <= 0 disables expiry.
func New(kv db.KVStore, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

// Get returns the session state and whether it exists.
func (s *Store) Get(ctx context.Context, id string) (domsession.State, bool, error) {
	data, err := s.kv.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsession.State{}, false, nil
		}
		return domsession.State{}, false, fmt.Errorf("get session %s: %w", id, err)
	}

	var state domsession.State
	if err := json.Unmarshal(data, &state); err != nil {
		return domsession.State{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return state, true, nil
}

// Put stores the session state, refreshing its TTL.
func (s *Store) Put(ctx context.Context, state domsession.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", state.ID, err)
	}

	key := keyPrefix + state.ID
	if s.ttl > 0 {
		err = s.kv.SetWithTTL(ctx, key, data, s.ttl)
	} else {
		err = s.kv.Set(ctx, key, data)
	}
	if err != nil {
		return fmt.Errorf("put session %s: %w", state.ID, err)
	}
	return nil
}

// Delete ends a session. Deleting an unknown session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.kv.Del(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
