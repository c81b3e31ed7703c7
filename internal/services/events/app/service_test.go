package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	apperrors "github.com/gigline/gigline/internal/platform/errors"
	"github.com/gigline/gigline/internal/services/events/domain"
	"github.com/gigline/gigline/internal/services/events/storage"
)

type memoryStore struct {
	mu         sync.Mutex
	records    map[string]storage.EventRecord
	timestamps map[string][]storage.StatusTimestamp
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:    make(map[string]storage.EventRecord),
		timestamps: make(map[string][]storage.StatusTimestamp),
	}
}

func (m *memoryStore) PutEvent(ctx context.Context, record storage.EventRecord, seed storage.StatusTimestamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return storage.ErrConflict
	}
	m.records[record.ID] = record
	m.timestamps[record.ID] = []storage.StatusTimestamp{seed}
	return nil
}

func (m *memoryStore) GetEvent(ctx context.Context, eventID string) (storage.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[eventID]
	if !ok {
		return storage.EventRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (m *memoryStore) ListStatusTimestamps(ctx context.Context, eventID string) ([]storage.StatusTimestamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.StatusTimestamp(nil), m.timestamps[eventID]...), nil
}

func (m *memoryStore) ListEvents(ctx context.Context, pageSize int, pageToken string) (storage.EventPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for eventID := range m.records {
		ids = append(ids, eventID)
	}
	sort.Slice(ids, func(i, j int) bool {
		left, right := m.records[ids[i]], m.records[ids[j]]
		if !left.CreatedAt.Equal(right.CreatedAt) {
			return left.CreatedAt.After(right.CreatedAt)
		}
		return left.ID > right.ID
	})
	start := 0
	if pageToken != "" {
		for i, eventID := range ids {
			if eventID == pageToken {
				start = i + 1
				break
			}
		}
	}
	page := storage.EventPage{}
	for i := start; i < len(ids) && len(page.Events) < pageSize; i++ {
		page.Events = append(page.Events, m.records[ids[i]])
	}
	if start+len(page.Events) < len(ids) && len(page.Events) > 0 {
		page.NextPageToken = page.Events[len(page.Events)-1].ID
	}
	return page, nil
}

func (m *memoryStore) UpdateEventStatus(ctx context.Context, eventID string, expectedStatus, newStatus string, enteredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[eventID]
	if !ok {
		return storage.ErrNotFound
	}
	if record.Status != expectedStatus {
		return storage.ErrConditionFailed
	}
	record.Status = newStatus
	record.UpdatedAt = enteredAt
	m.records[eventID] = record
	m.timestamps[eventID] = append(m.timestamps[eventID], storage.StatusTimestamp{Status: newStatus, EnteredAt: enteredAt})
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []domain.FanOutMessage
	fail     error
}

func (p *recordingPublisher) Publish(ctx context.Context, message domain.FanOutMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.messages = append(p.messages, message)
	return nil
}

func fixedClock(value time.Time) func() time.Time {
	return func() time.Time { return value }
}

func sequentialIDs() func() (string, error) {
	var counter int
	return func() (string, error) {
		counter++
		return fmt.Sprintf("evt-%d", counter), nil
	}
}

func newTestService(store storage.EventStore, publisher domain.Publisher, at time.Time) *Service {
	return NewService(store, publisher, WithClock(fixedClock(at)), WithIDGenerator(sequentialIDs()))
}

func TestSubmitEventPersistsAwaitingApproval(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	service := newTestService(store, &recordingPublisher{}, now)

	event, err := service.SubmitEvent(context.Background(), domain.SubmitEventInput{
		OrganizerID: "org-1",
		Title:       "Harbor Lights Festival",
		ReadableID:  "harbor-lights-festival",
		EventType:   "festival",
		ScheduledAt: now.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("SubmitEvent returned error: %v", err)
	}
	if event.Status != domain.StatusAwaitingApproval {
		t.Fatalf("status = %v, want awaiting approval", event.Status)
	}
	if event.ID != "evt-1" {
		t.Fatalf("event id = %q, want evt-1", event.ID)
	}

	stored, err := store.GetEvent(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("GetEvent returned error: %v", err)
	}
	if stored.Status != "awaiting_approval" {
		t.Fatalf("stored status = %q, want awaiting_approval", stored.Status)
	}
}

func TestSubmitEventRequiresTitle(t *testing.T) {
	t.Parallel()

	service := newTestService(newMemoryStore(), &recordingPublisher{}, time.Now())
	_, err := service.SubmitEvent(context.Background(), domain.SubmitEventInput{OrganizerID: "org-1"})
	if apperrors.CodeOf(err) != apperrors.CodeEventTitleRequired {
		t.Fatalf("error code = %v, want title required", apperrors.CodeOf(err))
	}
}

func TestGetEventIncludesTimestampHistory(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	service := newTestService(store, &recordingPublisher{}, now)
	ctx := context.Background()

	submitted, err := service.SubmitEvent(ctx, domain.SubmitEventInput{OrganizerID: "org-1", Title: "Harbor Lights Festival"})
	if err != nil {
		t.Fatalf("SubmitEvent returned error: %v", err)
	}
	if _, err := service.Transition(ctx, domain.TransitionInput{
		EventID:         submitted.ID,
		RequestedStatus: "under_review",
		CallerRoles:     []string{"organizer"},
	}); err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}

	event, err := service.GetEvent(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("GetEvent returned error: %v", err)
	}
	if event.Status != domain.StatusUnderReview {
		t.Fatalf("status = %v, want under review", event.Status)
	}
	if len(event.StatusTimestamps) != 2 {
		t.Fatalf("len(StatusTimestamps) = %d, want 2", len(event.StatusTimestamps))
	}
	if _, ok := event.StatusTimestamps[domain.StatusAwaitingApproval]; !ok {
		t.Fatal("missing awaiting approval timestamp")
	}
	if _, ok := event.StatusTimestamps[domain.StatusUnderReview]; !ok {
		t.Fatal("missing under review timestamp")
	}
}

func TestGetEventMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	service := newTestService(newMemoryStore(), &recordingPublisher{}, time.Now())
	_, err := service.GetEvent(context.Background(), "missing")
	if apperrors.CodeOf(err) != apperrors.CodeEventNotFound {
		t.Fatalf("error code = %v, want not found", apperrors.CodeOf(err))
	}
}

func TestGetEventRequiresID(t *testing.T) {
	t.Parallel()

	service := newTestService(newMemoryStore(), &recordingPublisher{}, time.Now())
	_, err := service.GetEvent(context.Background(), "  ")
	if apperrors.CodeOf(err) != apperrors.CodeEventIDRequired {
		t.Fatalf("error code = %v, want id required", apperrors.CodeOf(err))
	}
}

func TestListEventsAppliesPageSizeBounds(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := storage.EventRecord{
			ID:        fmt.Sprintf("evt-%d", i),
			Title:     "Harbor Lights Festival",
			Status:    "awaiting_approval",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		seed := storage.StatusTimestamp{Status: "awaiting_approval", EnteredAt: record.CreatedAt}
		if err := store.PutEvent(context.Background(), record, seed); err != nil {
			t.Fatalf("PutEvent returned error: %v", err)
		}
	}
	service := newTestService(store, &recordingPublisher{}, base)

	list, err := service.ListEvents(context.Background(), 0, "")
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(list.Events) != 3 {
		t.Fatalf("len(list.Events) = %d, want 3", len(list.Events))
	}
	if list.Events[0].ID != "evt-2" {
		t.Fatalf("first event = %q, want evt-2", list.Events[0].ID)
	}
}

func TestTransitionToPublishedEmitsFanOut(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	publisher := &recordingPublisher{}
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	service := newTestService(store, publisher, now)
	ctx := context.Background()

	submitted, err := service.SubmitEvent(ctx, domain.SubmitEventInput{
		OrganizerID: "org-1",
		Title:       "Harbor Lights Festival",
		ScheduledAt: now.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("SubmitEvent returned error: %v", err)
	}

	steps := []string{"under_review", "approved", "published"}
	var result domain.TransitionResult
	for _, target := range steps {
		result, err = service.Transition(ctx, domain.TransitionInput{
			EventID:         submitted.ID,
			RequestedStatus: target,
			CallerRoles:     []string{"organizer"},
		})
		if err != nil {
			t.Fatalf("Transition to %s returned error: %v", target, err)
		}
	}

	if !result.FanOutPublished {
		t.Fatal("expected fan-out publish on reaching published")
	}
	if len(publisher.messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(publisher.messages))
	}
	if publisher.messages[0].EventID != submitted.ID {
		t.Fatalf("message event id = %q, want %q", publisher.messages[0].EventID, submitted.ID)
	}
}

func TestTransitionPublishFailureKeepsCommittedStatus(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	publisher := &recordingPublisher{fail: errors.New("stream unavailable")}
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	service := newTestService(store, publisher, now)
	ctx := context.Background()

	submitted, err := service.SubmitEvent(ctx, domain.SubmitEventInput{OrganizerID: "org-1", Title: "Harbor Lights Festival"})
	if err != nil {
		t.Fatalf("SubmitEvent returned error: %v", err)
	}
	for _, target := range []string{"under_review", "approved"} {
		if _, err := service.Transition(ctx, domain.TransitionInput{EventID: submitted.ID, RequestedStatus: target, CallerRoles: []string{"organizer"}}); err != nil {
			t.Fatalf("Transition to %s returned error: %v", target, err)
		}
	}

	result, err := service.Transition(ctx, domain.TransitionInput{EventID: submitted.ID, RequestedStatus: "published", CallerRoles: []string{"organizer"}})
	if apperrors.CodeOf(err) != apperrors.CodeEventFanOutPublishFailed {
		t.Fatalf("error code = %v, want fan-out publish failed", apperrors.CodeOf(err))
	}
	if result.Status != domain.StatusPublished {
		t.Fatalf("result status = %v, want published", result.Status)
	}
	if result.FanOutPublished {
		t.Fatal("fan-out must not be reported as published")
	}

	stored, err := store.GetEvent(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("GetEvent returned error: %v", err)
	}
	if stored.Status != "published" {
		t.Fatalf("stored status = %q, want published", stored.Status)
	}
}
