package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/vietddude/guardrail/internal/infra/events"
)

// Sink publishes engine events to a Redis channel. Failures are logged and
// swallowed: event delivery is observational only.
type Sink struct {
	client  *Client
	channel string
	log     *slog.Logger
}

// NewSink creates a pub/sub sink on the given channel.
func NewSink(client *Client, channel string) *Sink {
	if channel == "" {
		channel = "guardrail:events"
	}
	return &Sink{
		client:  client,
		channel: channel,
		log:     slog.Default(),
	}
}

func (s *Sink) Publish(ctx context.Context, e events.Event) {
	raw, err := json.Marshal(e)
	if err != nil {
		s.log.DebugContext(ctx, "event encode failed", "name", e.Name, "error", err)
		return
	}
	if err := s.client.rdb.Publish(ctx, s.channel, raw).Err(); err != nil {
		s.log.DebugContext(ctx, "event publish failed", "name", e.Name, "error", err)
	}
}
