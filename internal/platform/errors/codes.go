// Package errors provides structured error handling for Gigline services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Event lifecycle errors
	CodeEventRequestInvalid          Code = "EVENT_REQUEST_INVALID"
	CodeEventIDRequired              Code = "EVENT_ID_REQUIRED"
	CodeEventTitleRequired           Code = "EVENT_TITLE_REQUIRED"
	CodeEventStatusInvalid           Code = "EVENT_STATUS_INVALID"
	CodeEventRolesRequired           Code = "EVENT_CALLER_ROLES_REQUIRED"
	CodeEventNotFound                Code = "EVENT_NOT_FOUND"
	CodeEventInvalidStatusTransition Code = "EVENT_INVALID_STATUS_TRANSITION"
	CodeEventConcurrentModification  Code = "EVENT_CONCURRENT_MODIFICATION"
	CodeEventMissingOrganizer        Code = "EVENT_MISSING_ORGANIZER"
	CodeEventFanOutPublishFailed     Code = "EVENT_FANOUT_PUBLISH_FAILED"

	// Storage errors
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeEventRequestInvalid,
		CodeEventIDRequired,
		CodeEventTitleRequired,
		CodeEventStatusInvalid,
		CodeEventRolesRequired:
		return http.StatusBadRequest

	// Not found - missing records
	case CodeEventNotFound:
		return http.StatusNotFound

	// Conflict - the requested transition is not allowed from the current state
	case CodeEventInvalidStatusTransition:
		return http.StatusConflict

	// Service unavailable - optimistic write lost the race after bounded retries
	case CodeEventConcurrentModification:
		return http.StatusServiceUnavailable

	// Bad gateway - the record committed but the fan-out publish did not go out
	case CodeEventFanOutPublishFailed:
		return http.StatusBadGateway

	// Internal - data integrity violations and infrastructure failures
	case CodeEventMissingOrganizer, CodeStorageFailure, CodeUnknown:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
