// Package app wires the events domain to its storage, queue, and transport
// dependencies and hosts the service runtime.
package app

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/gigline/gigline/internal/platform/errors"
	"github.com/gigline/gigline/internal/platform/id"
	"github.com/gigline/gigline/internal/services/events/domain"
	"github.com/gigline/gigline/internal/services/events/storage"
)

const (
	// defaultListPageSize applies when callers omit a page size.
	defaultListPageSize = 20
	// maxListPageSize caps list reads regardless of the requested size.
	maxListPageSize = 100
)

// Service exposes the event lifecycle operations served by the API.
type Service struct {
	store     storage.EventStore
	authority *domain.Authority
	clock     func() time.Time
	newID     func() (string, error)
}

// ServiceOption configures optional service behavior.
type ServiceOption func(*Service)

// WithClock overrides the service clock. Used by tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides event ID generation. Used by tests.
func WithIDGenerator(newID func() (string, error)) ServiceOption {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService builds the events service on the given store and publisher.
func NewService(store storage.EventStore, publisher domain.Publisher, opts ...ServiceOption) *Service {
	service := &Service{
		store: store,
		clock: time.Now,
		newID: id.NewID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	var adapter domain.Store
	if store != nil {
		adapter = newStoreAdapter(store)
	}
	service.authority = domain.NewAuthority(adapter, publisher, service.clock)
	return service
}

// SubmitEvent creates a new awaiting-approval event.
func (s *Service) SubmitEvent(ctx context.Context, input domain.SubmitEventInput) (domain.Event, error) {
	event, err := domain.SubmitEvent(input, s.clock, s.newID)
	if err != nil {
		return domain.Event{}, err
	}
	if err := newStoreAdapter(s.store).CreateEvent(ctx, event); err != nil {
		return domain.Event{}, apperrors.Wrap(apperrors.CodeStorageFailure, "store submitted event", err)
	}
	return event, nil
}

// GetEvent loads one event with its status timestamp history.
func (s *Service) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.Event{}, domain.ErrEventIDRequired
	}
	event, err := newStoreAdapter(s.store).GetEvent(ctx, eventID)
	if err != nil {
		if _, ok := apperrors.AsError(err); ok {
			return domain.Event{}, err
		}
		return domain.Event{}, apperrors.Wrap(apperrors.CodeStorageFailure, "load event", err)
	}
	return event, nil
}

// ListEvents returns one page of events, newest first. Timestamp history is
// not loaded for list reads.
func (s *Service) ListEvents(ctx context.Context, pageSize int, pageToken string) (domain.EventList, error) {
	if pageSize <= 0 {
		pageSize = defaultListPageSize
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}

	page, err := s.store.ListEvents(ctx, pageSize, pageToken)
	if err != nil {
		return domain.EventList{}, apperrors.Wrap(apperrors.CodeStorageFailure, "list events", err)
	}

	list := domain.EventList{
		Events:        make([]domain.Event, 0, len(page.Events)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Events {
		event, err := eventFromRecord(record, nil)
		if err != nil {
			return domain.EventList{}, apperrors.Wrap(apperrors.CodeStorageFailure, "decode event record", err)
		}
		list.Events = append(list.Events, event)
	}
	return list, nil
}

// Transition performs one status change through the authority.
func (s *Service) Transition(ctx context.Context, input domain.TransitionInput) (domain.TransitionResult, error) {
	return s.authority.Transition(ctx, input)
}
