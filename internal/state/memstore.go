package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// #region mem-store

// MemStore is an in-process Store and Locker. Values round-trip through JSON
// so callers see the same decoding behavior as SQLiteStore.
type MemStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	locks map[string]memLease
	now   func() time.Time

	// Puts counts successful writes per key.
	Puts map[string]int
}

type memLease struct {
	owner   string
	expires time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:  make(map[string][]byte),
		locks: make(map[string]memLease),
		now:   time.Now,
		Puts:  make(map[string]int),
	}
}

func (m *MemStore) Get(_ context.Context, key string, v any) (bool, error) {
	m.mu.Lock()
	body, ok := m.docs[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemStore) Put(_ context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.docs[key] = body
	m.Puts[key]++
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) Acquire(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if l, ok := m.locks[name]; ok && !l.expires.Before(now) {
		return false, nil
	}
	m.locks[name] = memLease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemStore) Release(_ context.Context, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[name]; ok && l.owner == owner {
		delete(m.locks, name)
	}
	return nil
}

// #endregion mem-store
