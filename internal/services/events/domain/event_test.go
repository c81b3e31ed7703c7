package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSubmitEventSeedsAwaitingApproval(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	event, err := SubmitEvent(SubmitEventInput{
		OrganizerID: " org-1 ",
		Title:       "  Harbor Lights Festival ",
		ReadableID:  " harbor-lights-festival ",
		EventType:   " concert ",
		ScheduledAt: time.Date(2026, 9, 12, 19, 30, 0, 0, time.UTC),
	}, fixedClock(now), sequentialIDGenerator("evt-1"))
	if err != nil {
		t.Fatalf("submit event: %v", err)
	}

	if event.ID != "evt-1" {
		t.Fatalf("id = %q, want generated id", event.ID)
	}
	if event.Status != StatusAwaitingApproval {
		t.Fatalf("status = %s, want awaiting_approval", event.Status.Label())
	}
	if event.Title != "Harbor Lights Festival" || event.OrganizerID != "org-1" {
		t.Fatalf("expected trimmed fields, got %+v", event)
	}
	if event.ReadableID != "harbor-lights-festival" || event.EventType != "concert" {
		t.Fatalf("expected trimmed descriptors, got %+v", event)
	}
	if got := event.StatusTimestamps[StatusAwaitingApproval]; !got.Equal(now) {
		t.Fatalf("seeded timestamp = %v, want %v", got, now)
	}
	if len(event.StatusTimestamps) != 1 {
		t.Fatalf("expected single seeded timestamp, got %v", event.StatusTimestamps)
	}
	if !event.CreatedAt.Equal(now) || !event.UpdatedAt.Equal(now) {
		t.Fatalf("expected creation timestamps at %v, got %+v", now, event)
	}
}

func TestSubmitEventRequiresTitle(t *testing.T) {
	t.Parallel()

	_, err := SubmitEvent(SubmitEventInput{Title: "   "}, nil, nil)
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected title required error, got %v", err)
	}
}

func TestSubmitEventAllowsMissingOrganizer(t *testing.T) {
	t.Parallel()

	event, err := SubmitEvent(SubmitEventInput{Title: "Legacy Import"}, nil, sequentialIDGenerator("evt-2"))
	if err != nil {
		t.Fatalf("submit event: %v", err)
	}
	if event.OrganizerID != "" {
		t.Fatalf("organizer = %q, want empty", event.OrganizerID)
	}
}

func TestSubmitEventPropagatesIDGeneratorError(t *testing.T) {
	t.Parallel()

	generatorErr := errors.New("entropy exhausted")
	_, err := SubmitEvent(SubmitEventInput{Title: "Harbor Lights"}, nil, func() (string, error) {
		return "", generatorErr
	})
	if !errors.Is(err, generatorErr) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func sequentialIDGenerator(ids ...string) func() (string, error) {
	index := 0
	return func() (string, error) {
		if index >= len(ids) {
			return "", errors.New("id sequence exhausted")
		}
		id := ids[index]
		index++
		return id, nil
	}
}
