// Package events publishes observational engine events. Delivery is fire and
// forget: the engine's correctness never depends on a sink seeing an event.
package events

import (
	"context"
	"log/slog"
)

// Event is one observational record.
type Event struct {
	Category string         `json:"category"`
	Name     string         `json:"name"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// Sink receives events. Implementations must not block the caller on
// delivery failures.
type Sink interface {
	Publish(ctx context.Context, e Event)
}

// LogSink writes events to structured logs.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink over the given logger (slog.Default when nil).
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, e Event) {
	s.log.InfoContext(ctx, "event",
		"category", e.Category,
		"name", e.Name,
		"payload", e.Payload,
	)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}
