package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gigline/gigline/internal/services/events/domain"
	"github.com/gigline/gigline/internal/services/events/storage"
)

// storeAdapter exposes an EventStore through the domain's persistence
// boundary, translating records and sentinel errors both ways.
type storeAdapter struct {
	store storage.EventStore
}

func newStoreAdapter(store storage.EventStore) *storeAdapter {
	return &storeAdapter{store: store}
}

func (a *storeAdapter) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	record, err := a.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, err
	}
	timestamps, err := a.store.ListStatusTimestamps(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	return eventFromRecord(record, timestamps)
}

func (a *storeAdapter) CreateEvent(ctx context.Context, event domain.Event) error {
	record := recordFromEvent(event)
	seed := storage.StatusTimestamp{
		Status:    event.Status.Label(),
		EnteredAt: event.CreatedAt,
	}
	if err := a.store.PutEvent(ctx, record, seed); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fmt.Errorf("event %s already exists: %w", event.ID, err)
		}
		return err
	}
	return nil
}

func (a *storeAdapter) UpdateEventStatus(ctx context.Context, eventID string, expected, next domain.Status, enteredAt time.Time) error {
	err := a.store.UpdateEventStatus(ctx, eventID, expected.Label(), next.Label(), enteredAt)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrEventNotFound
		}
		if errors.Is(err, storage.ErrConditionFailed) {
			return domain.ErrStatusConditionFailed
		}
		return err
	}
	return nil
}

func recordFromEvent(event domain.Event) storage.EventRecord {
	return storage.EventRecord{
		ID:          event.ID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		ReadableID:  event.ReadableID,
		EventType:   event.EventType,
		ScheduledAt: event.ScheduledAt,
		Status:      event.Status.Label(),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func eventFromRecord(record storage.EventRecord, timestamps []storage.StatusTimestamp) (domain.Event, error) {
	status, ok := domain.ParseStatus(record.Status)
	if !ok {
		return domain.Event{}, fmt.Errorf("event %s has unknown stored status %q", record.ID, record.Status)
	}
	event := domain.Event{
		ID:          record.ID,
		OrganizerID: record.OrganizerID,
		Title:       record.Title,
		ReadableID:  record.ReadableID,
		EventType:   record.EventType,
		ScheduledAt: record.ScheduledAt,
		Status:      status,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	if len(timestamps) > 0 {
		event.StatusTimestamps = make(map[domain.Status]time.Time, len(timestamps))
		for _, entry := range timestamps {
			entryStatus, ok := domain.ParseStatus(entry.Status)
			if !ok {
				return domain.Event{}, fmt.Errorf("event %s has unknown stored timestamp status %q", record.ID, entry.Status)
			}
			event.StatusTimestamps[entryStatus] = entry.EnteredAt
		}
	}
	return event, nil
}
