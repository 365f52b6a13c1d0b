// Package memory provides an in-process Store for tests and single-node runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vietddude/guardrail/internal/infra/storage"
)

// MemoryStore keeps JSON-encoded records in a mutex-guarded map.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[storage.Key][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[storage.Key][]byte),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key storage.Key, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key storage.Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.records[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key storage.Key) error {
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, key storage.Key) (bool, error) {
	s.mu.RLock()
	_, ok := s.records[key]
	s.mu.RUnlock()
	return ok, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
