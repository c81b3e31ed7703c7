package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/gigline/gigline/internal/platform/errors"
	"github.com/gigline/gigline/internal/platform/id"
)

var (
	// ErrEventIDRequired indicates a missing event identifier.
	ErrEventIDRequired = apperrors.New(apperrors.CodeEventIDRequired, "event id is required")
	// ErrTitleRequired indicates a missing event title.
	ErrTitleRequired = apperrors.New(apperrors.CodeEventTitleRequired, "event title is required")
	// ErrStatusInvalid indicates a missing or unrecognized event status.
	ErrStatusInvalid = apperrors.New(apperrors.CodeEventStatusInvalid, "event status is not recognized")
	// ErrRolesRequired indicates the caller supplied no roles.
	ErrRolesRequired = apperrors.New(apperrors.CodeEventRolesRequired, "caller roles are required")
	// ErrEventNotFound indicates the event id does not resolve to a record.
	ErrEventNotFound = apperrors.New(apperrors.CodeEventNotFound, "event not found")
	// ErrInvalidStatusTransition indicates a disallowed event status change.
	ErrInvalidStatusTransition = apperrors.New(apperrors.CodeEventInvalidStatusTransition, "event status transition is not allowed")
	// ErrMissingOrganizer indicates a published event with no owning organizer.
	ErrMissingOrganizer = apperrors.New(apperrors.CodeEventMissingOrganizer, "published event has no organizer reference")
)

// Event represents one event listing record.
//
// Status is mutated only through the Authority; the descriptive fields are
// immutable after submission and feed the publish fan-out message.
type Event struct {
	ID          string
	OrganizerID string
	Title       string
	ReadableID  string
	EventType   string
	ScheduledAt time.Time
	Status      Status
	// StatusTimestamps maps each status the event passed through to the time
	// it was last entered. Entries are appended per transition, never removed.
	StatusTimestamps map[Status]time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventList is one page of events ordered newest-first.
type EventList struct {
	Events        []Event
	NextPageToken string
}

// SubmitEventInput describes the metadata needed to submit an event.
type SubmitEventInput struct {
	OrganizerID string
	Title       string
	ReadableID  string
	EventType   string
	ScheduledAt time.Time
}

// SubmitEvent creates a new event with a generated ID, awaiting-approval
// status, and a seeded status timestamp.
func SubmitEvent(input SubmitEventInput, now func() time.Time, idGenerator func() (string, error)) (Event, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Event{}, ErrTitleRequired
	}

	eventID, err := idGenerator()
	if err != nil {
		return Event{}, fmt.Errorf("generate event id: %w", err)
	}

	createdAt := now().UTC()
	return Event{
		ID:          eventID,
		OrganizerID: strings.TrimSpace(input.OrganizerID),
		Title:       title,
		ReadableID:  strings.TrimSpace(input.ReadableID),
		EventType:   strings.TrimSpace(input.EventType),
		ScheduledAt: input.ScheduledAt.UTC(),
		Status:      StatusAwaitingApproval,
		StatusTimestamps: map[Status]time.Time{
			StatusAwaitingApproval: createdAt,
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}
