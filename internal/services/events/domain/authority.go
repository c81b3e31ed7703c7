package domain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gigline/gigline/internal/platform/errors"
)

var (
	// ErrStoreNotConfigured indicates the authority is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("event store is not configured")
	// ErrPublisherNotConfigured indicates the authority is missing queue wiring.
	ErrPublisherNotConfigured = errors.New("fan-out publisher is not configured")
	// ErrStatusConditionFailed is returned by stores when the conditional
	// status write observed a stale status. The authority retries the whole
	// transition; it never reaches callers directly.
	ErrStatusConditionFailed = errors.New("event status condition failed")
)

// defaultTransitionAttempts bounds optimistic-write retries per transition.
const defaultTransitionAttempts = 3

// Store is the authority's persistence boundary.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (Event, error)
	CreateEvent(ctx context.Context, event Event) error
	// UpdateEventStatus commits the transition only if the stored status still
	// equals expected, recording enteredAt as the status timestamp. It returns
	// ErrStatusConditionFailed when the stored status no longer matches.
	UpdateEventStatus(ctx context.Context, eventID string, expected, next Status, enteredAt time.Time) error
}

// Authority is the single gate through which all event lifecycle status
// changes pass. It enforces the transition tables, commits the status write
// with optimistic concurrency, and notifies downstream consumers at the
// publish boundary.
type Authority struct {
	store     Store
	publisher Publisher
	clock     func() time.Time
	attempts  int
}

// AuthorityOption configures optional authority behavior.
type AuthorityOption func(*Authority)

// WithTransitionAttempts overrides the bounded retry count for optimistic
// write conflicts.
func WithTransitionAttempts(attempts int) AuthorityOption {
	return func(a *Authority) {
		if attempts > 0 {
			a.attempts = attempts
		}
	}
}

// NewAuthority constructs the event status transition authority.
func NewAuthority(store Store, publisher Publisher, clock func() time.Time, opts ...AuthorityOption) *Authority {
	if clock == nil {
		clock = time.Now
	}
	authority := &Authority{
		store:     store,
		publisher: publisher,
		clock:     clock,
		attempts:  defaultTransitionAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(authority)
		}
	}
	return authority
}

// TransitionInput describes one requested status change.
type TransitionInput struct {
	EventID         string
	RequestedStatus string
	// CallerRoles is the pre-split, already-authenticated role set. Matching
	// against the admin role is case-insensitive and trimmed.
	CallerRoles []string
}

// TransitionResult reports a committed status change.
type TransitionResult struct {
	EventID string
	Status  Status
	// FanOutPublished reports whether the publish fan-out message went out.
	// It is false for non-publish transitions and for partial failures where
	// the record committed but the publish did not.
	FanOutPublished bool
}

// Transition validates and performs one status change.
//
// The record write is the single source of truth and always happens before
// any publish attempt. When the publish step fails after the write succeeded,
// the committed result is returned alongside the typed error so callers can
// re-drive the fan-out against idempotent consumers instead of rolling back
// an externally visible status.
func (a *Authority) Transition(ctx context.Context, input TransitionInput) (TransitionResult, error) {
	if a == nil || a.store == nil {
		return TransitionResult{}, ErrStoreNotConfigured
	}
	if a.publisher == nil {
		return TransitionResult{}, ErrPublisherNotConfigured
	}

	eventID, target, admin, err := a.validateInput(input)
	if err != nil {
		return TransitionResult{}, err
	}

	for attempt := 0; attempt < a.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return TransitionResult{}, err
		}

		event, err := a.store.GetEvent(ctx, eventID)
		if err != nil {
			return TransitionResult{}, err
		}

		if !IsTransitionAllowed(event.Status, target, admin) {
			fromStatus := event.Status.Label()
			toStatus := target.Label()
			return TransitionResult{}, apperrors.WithMetadata(
				apperrors.CodeEventInvalidStatusTransition,
				fmt.Sprintf("event status transition not allowed: %s -> %s", fromStatus, toStatus),
				map[string]string{"FromStatus": fromStatus, "ToStatus": toStatus},
			)
		}

		enteredAt := a.clock().UTC()
		err = a.store.UpdateEventStatus(ctx, event.ID, event.Status, target, enteredAt)
		if errors.Is(err, ErrStatusConditionFailed) {
			continue
		}
		if err != nil {
			return TransitionResult{}, err
		}

		result := TransitionResult{EventID: event.ID, Status: target}
		if target != StatusPublished {
			return result, nil
		}

		published := event
		published.Status = target
		message, err := NewFanOutMessage(published)
		if err != nil {
			// The record is already committed; surfaced for manual investigation.
			return result, err
		}
		if err := a.publisher.Publish(ctx, message); err != nil {
			return result, apperrors.WrapWithMetadata(
				apperrors.CodeEventFanOutPublishFailed,
				"event published but fan-out message was not sent",
				map[string]string{"EventID": event.ID},
				err,
			)
		}
		result.FanOutPublished = true
		return result, nil
	}

	return TransitionResult{}, apperrors.WithMetadata(
		apperrors.CodeEventConcurrentModification,
		"event status changed concurrently",
		map[string]string{"EventID": eventID, "Attempts": strconv.Itoa(a.attempts)},
	)
}

func (a *Authority) validateInput(input TransitionInput) (string, Status, bool, error) {
	eventID := strings.TrimSpace(input.EventID)
	if eventID == "" {
		return "", StatusUnspecified, false, ErrEventIDRequired
	}

	target, ok := ParseStatus(input.RequestedStatus)
	if !ok {
		return "", StatusUnspecified, false, apperrors.WithMetadata(
			apperrors.CodeEventStatusInvalid,
			fmt.Sprintf("event status %q is not recognized", input.RequestedStatus),
			map[string]string{"RequestedStatus": input.RequestedStatus},
		)
	}

	roles := NormalizeRoles(input.CallerRoles)
	if len(roles) == 0 {
		return "", StatusUnspecified, false, ErrRolesRequired
	}

	return eventID, target, HasAdminRole(roles), nil
}
