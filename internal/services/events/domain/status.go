package domain

import "strings"

// Status describes the lifecycle of an event listing.
type Status int

const (
	// StatusUnspecified represents an invalid event status value.
	StatusUnspecified Status = iota
	// StatusAwaitingApproval indicates a freshly submitted event.
	StatusAwaitingApproval
	// StatusUnderReview indicates the event is being reviewed.
	StatusUnderReview
	// StatusApproved indicates the event passed review.
	StatusApproved
	// StatusPublished indicates the event is live and discoverable.
	StatusPublished
	// StatusCancelled indicates the event was called off.
	StatusCancelled
	// StatusDeleted indicates the event was logically removed.
	StatusDeleted
)

// RoleAdmin is the caller role that unlocks override transitions.
const RoleAdmin = "admin"

// statusLabels holds the canonical wire and storage labels per status.
var statusLabels = map[Status]string{
	StatusAwaitingApproval: "awaiting_approval",
	StatusUnderReview:      "under_review",
	StatusApproved:         "approved",
	StatusPublished:        "published",
	StatusCancelled:        "cancelled",
	StatusDeleted:          "deleted",
}

// baseTransitions is the allowed-transition table for any caller.
var baseTransitions = map[Status][]Status{
	StatusAwaitingApproval: {StatusUnderReview, StatusCancelled, StatusDeleted},
	StatusUnderReview:      {StatusApproved, StatusCancelled, StatusDeleted},
	StatusApproved:         {StatusPublished, StatusCancelled, StatusDeleted},
	StatusPublished:        {},
	StatusCancelled:        {StatusDeleted},
	StatusDeleted:          {},
}

// adminTransitions adds override edges applied only when the caller holds the
// admin role. The Cancelled entry duplicates the base table; the union is set
// semantics so the duplicate is harmless and kept as-is.
var adminTransitions = map[Status][]Status{
	StatusAwaitingApproval: {StatusUnderReview, StatusCancelled, StatusDeleted, StatusApproved},
	StatusPublished:        {StatusCancelled},
	StatusCancelled:        {StatusDeleted},
}

// Label returns the canonical lowercase label for the status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "unspecified"
}

// ParseStatus maps a wire label to a Status. Matching is trimmed and
// case-insensitive; unknown labels report false.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for status, label := range statusLabels {
		if label == normalized {
			return status, true
		}
	}
	return StatusUnspecified, false
}

// AllowedTargets returns the effective allowed-transition set for the current
// status: the base table entry, unioned with the admin override entry when the
// caller is an admin.
func AllowedTargets(from Status, admin bool) []Status {
	targets := append([]Status(nil), baseTransitions[from]...)
	if admin {
		targets = append(targets, adminTransitions[from]...)
	}
	return targets
}

// IsTransitionAllowed reports whether the requested transition is in the
// effective allowed set for the caller.
func IsTransitionAllowed(from, to Status, admin bool) bool {
	for _, target := range AllowedTargets(from, admin) {
		if target == to {
			return true
		}
	}
	return false
}

// NormalizeRoles lowercases and trims role strings, dropping empties.
func NormalizeRoles(roles []string) []string {
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		normalized = append(normalized, role)
	}
	return normalized
}

// HasAdminRole reports whether the normalized role set contains the admin role.
func HasAdminRole(roles []string) bool {
	for _, role := range roles {
		if strings.ToLower(strings.TrimSpace(role)) == RoleAdmin {
			return true
		}
	}
	return false
}
