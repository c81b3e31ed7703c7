package domain

import (
	"context"
	"time"

	apperrors "github.com/gigline/gigline/internal/platform/errors"
)

// FanOutMessage describes a newly published event for downstream consumers.
// Delivery is at-least-once; consumers must de-duplicate on EventID.
type FanOutMessage struct {
	EventID     string `json:"eventId"`
	OrganizerID string `json:"organizerId"`
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduledAt"`
	ReadableID  string `json:"readableId"`
	EventType   string `json:"eventType"`
}

// Publisher sends fan-out messages to the downstream queue.
type Publisher interface {
	Publish(ctx context.Context, message FanOutMessage) error
}

// NewFanOutMessage builds the publish notification from an event record.
// A published event with no owning organizer is an unrecoverable invariant
// violation and is reported, never repaired.
func NewFanOutMessage(event Event) (FanOutMessage, error) {
	if event.OrganizerID == "" {
		return FanOutMessage{}, apperrors.WithMetadata(
			apperrors.CodeEventMissingOrganizer,
			"published event has no organizer reference",
			map[string]string{"EventID": event.ID},
		)
	}
	return FanOutMessage{
		EventID:     event.ID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		ScheduledAt: event.ScheduledAt.UTC().Format(time.RFC3339),
		ReadableID:  event.ReadableID,
		EventType:   event.EventType,
	}, nil
}
