// Package redisstream publishes event fan-out messages to a Redis stream.
package redisstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/gigline/gigline/internal/platform/timeouts"
	"github.com/gigline/gigline/internal/services/events/domain"
)

// DefaultStream is the stream consumed by downstream ticketing and
// notification workers.
const DefaultStream = "gigline:events:published"

// Publisher appends fan-out messages to a Redis stream with XADD. Stream
// entries are retained until downstream consumers acknowledge and trim,
// giving at-least-once delivery across restarts.
type Publisher struct {
	client redis.Cmdable
	stream string
}

// New creates a Publisher that writes to the named stream. An empty stream
// name selects DefaultStream.
func New(client redis.Cmdable, stream string) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	stream = strings.TrimSpace(stream)
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{client: client, stream: stream}, nil
}

// Publish appends one fan-out message to the stream.
func (p *Publisher) Publish(ctx context.Context, message domain.FanOutMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.QueuePublish)
	defer cancel()

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: streamValues(message),
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func streamValues(message domain.FanOutMessage) map[string]any {
	return map[string]any{
		"eventId":     message.EventID,
		"organizerId": message.OrganizerID,
		"title":       message.Title,
		"scheduledAt": message.ScheduledAt,
		"readableId":  message.ReadableID,
		"eventType":   message.EventType,
	}
}
