package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vietddude/guardrail/internal/infra/storage"
)

// StateStore implements storage.Store on the guardrail_state table.
type StateStore struct {
	db *DB
}

// NewStateStore creates a store over an open connection pool.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) Get(ctx context.Context, key storage.Key, out any) (bool, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw,
		`SELECT value FROM guardrail_state WHERE key = $1`, string(key))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *StateStore) Set(ctx context.Context, key storage.Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO guardrail_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		string(key), raw)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Remove(ctx context.Context, key storage.Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM guardrail_state WHERE key = $1`, string(key))
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Has(ctx context.Context, key storage.Key) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM guardrail_state WHERE key = $1)`, string(key))
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return exists, nil
}
