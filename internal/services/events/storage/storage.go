package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a requested event record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
	// ErrConditionFailed indicates a conditional status write observed a
	// stored status that no longer matches the expected one.
	ErrConditionFailed = errors.New("status condition failed")
)

// EventRecord stores one event listing row.
type EventRecord struct {
	ID          string
	OrganizerID string
	Title       string
	ReadableID  string
	EventType   string
	ScheduledAt time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StatusTimestamp stores when one lifecycle status was last entered.
type StatusTimestamp struct {
	Status    string
	EnteredAt time.Time
}

// EventPage stores a paged event listing result.
type EventPage struct {
	Events        []EventRecord
	NextPageToken string
}

// EventStore persists event lifecycle state.
type EventStore interface {
	// PutEvent inserts one event row together with its seeded status timestamp.
	PutEvent(ctx context.Context, record EventRecord, seed StatusTimestamp) error
	GetEvent(ctx context.Context, eventID string) (EventRecord, error)
	ListStatusTimestamps(ctx context.Context, eventID string) ([]StatusTimestamp, error)
	ListEvents(ctx context.Context, pageSize int, pageToken string) (EventPage, error)
	// UpdateEventStatus commits newStatus only while the stored status still
	// equals expectedStatus, upserting the status timestamp in the same
	// transaction. Returns ErrConditionFailed when the stored status moved.
	UpdateEventStatus(ctx context.Context, eventID string, expectedStatus, newStatus string, enteredAt time.Time) error
}
