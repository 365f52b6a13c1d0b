// Package storage defines the keyed state store the resilience engine
// persists its records in. Every mutation of engine state is a
// read-modify-write against one of these keys.
package storage

import "context"

// Key identifies one persisted record.
type Key string

const (
	// KeyConfig holds the threshold monitor configuration.
	KeyConfig Key = "cfg"
	// KeyCurrentMetrics holds the live window metrics.
	KeyCurrentMetrics Key = "metrics:current"
	// KeyPreviousMetrics holds the last archived window.
	KeyPreviousMetrics Key = "metrics:previous"
	// KeyLastCooldownEnd holds the unix second the active lockout ends.
	KeyLastCooldownEnd Key = "cooldown:end"
	// KeyCooldownMultiplier holds the current escalation multiplier.
	KeyCooldownMultiplier Key = "cooldown:mult"
)

// BreakerKey returns the per-category circuit breaker key.
func BreakerKey(category string) Key {
	return Key("breaker:" + category)
}

// ErrorStateKey returns the per-operation error state key.
func ErrorStateKey(operationID string) Key {
	return Key("errstate:" + operationID)
}

// Store is the persistence collaborator. Values are JSON-encoded by the
// backend; Get decodes into out and reports whether the key existed.
type Store interface {
	Get(ctx context.Context, key Key, out any) (bool, error)
	Set(ctx context.Context, key Key, value any) error
	Remove(ctx context.Context, key Key) error
	Has(ctx context.Context, key Key) (bool, error)
}
