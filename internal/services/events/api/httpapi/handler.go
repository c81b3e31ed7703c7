// Package httpapi serves the events JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gigline/gigline/internal/platform/errors"
	"github.com/gigline/gigline/internal/platform/timeouts"
	"github.com/gigline/gigline/internal/services/events/domain"
)

// RolesHeader carries the authenticated caller's role set, comma separated.
// Authentication happens upstream; this service only consumes the result.
const RolesHeader = "X-Gigline-Roles"

// Service is the application surface the handler routes to.
type Service interface {
	SubmitEvent(ctx context.Context, input domain.SubmitEventInput) (domain.Event, error)
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	ListEvents(ctx context.Context, pageSize int, pageToken string) (domain.EventList, error)
	Transition(ctx context.Context, input domain.TransitionInput) (domain.TransitionResult, error)
}

// Handler routes events API requests.
type Handler struct {
	service Service
	mux     *http.ServeMux
}

// NewHandler builds the events API handler with its routes registered.
func NewHandler(service Service) *Handler {
	handler := &Handler{
		service: service,
		mux:     http.NewServeMux(),
	}
	handler.mux.HandleFunc(http.MethodPost+" /v1/events", handler.handleSubmitEvent)
	handler.mux.HandleFunc(http.MethodGet+" /v1/events", handler.handleListEvents)
	handler.mux.HandleFunc(http.MethodGet+" /v1/events/{id}", handler.handleGetEvent)
	handler.mux.HandleFunc(http.MethodPost+" /v1/events/{id}/status", handler.handleTransition)
	return handler
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Request)
	defer cancel()
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

type submitEventRequest struct {
	OrganizerID string `json:"organizerId"`
	Title       string `json:"title"`
	ReadableID  string `json:"readableId"`
	EventType   string `json:"eventType"`
	ScheduledAt string `json:"scheduledAt"`
}

type eventResponse struct {
	ID               string            `json:"id"`
	OrganizerID      string            `json:"organizerId,omitempty"`
	Title            string            `json:"title"`
	ReadableID       string            `json:"readableId,omitempty"`
	EventType        string            `json:"eventType,omitempty"`
	ScheduledAt      string            `json:"scheduledAt,omitempty"`
	Status           string            `json:"status"`
	StatusTimestamps map[string]string `json:"statusTimestamps,omitempty"`
	CreatedAt        string            `json:"createdAt"`
	UpdatedAt        string            `json:"updatedAt"`
}

type listEventsResponse struct {
	Events        []eventResponse `json:"events"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type transitionResponse struct {
	EventID         string `json:"eventId"`
	Status          string `json:"status"`
	FanOutPublished bool   `json:"fanOutPublished"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
	// Committed reports the status write that succeeded before a later step
	// failed. Present only on partial failures.
	Committed *transitionResponse `json:"committed,omitempty"`
}

func (h *Handler) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	var request submitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeEventRequestInvalid, "decode request body", err))
		return
	}

	input := domain.SubmitEventInput{
		OrganizerID: request.OrganizerID,
		Title:       request.Title,
		ReadableID:  request.ReadableID,
		EventType:   request.EventType,
	}
	if strings.TrimSpace(request.ScheduledAt) != "" {
		scheduledAt, err := time.Parse(time.RFC3339, request.ScheduledAt)
		if err != nil {
			writeError(w, apperrors.WithMetadata(
				apperrors.CodeEventRequestInvalid,
				"scheduledAt must be RFC 3339",
				map[string]string{"ScheduledAt": request.ScheduledAt},
			))
			return
		}
		input.ScheduledAt = scheduledAt
	}

	event, err := h.service.SubmitEvent(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, eventToResponse(event))
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventToResponse(event))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize := 0
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, apperrors.WithMetadata(
				apperrors.CodeEventRequestInvalid,
				"pageSize must be a non-negative integer",
				map[string]string{"PageSize": raw},
			))
			return
		}
		pageSize = parsed
	}

	list, err := h.service.ListEvents(r.Context(), pageSize, query.Get("pageToken"))
	if err != nil {
		writeError(w, err)
		return
	}

	response := listEventsResponse{
		Events:        make([]eventResponse, 0, len(list.Events)),
		NextPageToken: list.NextPageToken,
	}
	for _, event := range list.Events {
		response.Events = append(response.Events, eventToResponse(event))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var request transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeEventRequestInvalid, "decode request body", err))
		return
	}

	result, err := h.service.Transition(r.Context(), domain.TransitionInput{
		EventID:         r.PathValue("id"),
		RequestedStatus: request.Status,
		CallerRoles:     rolesFromHeader(r),
	})
	if err != nil {
		// A partial failure still carries the committed write so callers can
		// reconcile instead of retrying the transition.
		if result.Status != domain.StatusUnspecified {
			writeErrorWithCommitted(w, err, resultToResponse(result))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultToResponse(result))
}

func rolesFromHeader(r *http.Request) []string {
	raw := r.Header.Get(RolesHeader)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			roles = append(roles, trimmed)
		}
	}
	return roles
}

func eventToResponse(event domain.Event) eventResponse {
	response := eventResponse{
		ID:          event.ID,
		OrganizerID: event.OrganizerID,
		Title:       event.Title,
		ReadableID:  event.ReadableID,
		EventType:   event.EventType,
		Status:      event.Status.Label(),
		CreatedAt:   event.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   event.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !event.ScheduledAt.IsZero() {
		response.ScheduledAt = event.ScheduledAt.UTC().Format(time.RFC3339)
	}
	if len(event.StatusTimestamps) > 0 {
		response.StatusTimestamps = make(map[string]string, len(event.StatusTimestamps))
		for status, enteredAt := range event.StatusTimestamps {
			response.StatusTimestamps[status.Label()] = enteredAt.UTC().Format(time.RFC3339)
		}
	}
	return response
}

func resultToResponse(result domain.TransitionResult) transitionResponse {
	return transitionResponse{
		EventID:         result.EventID,
		Status:          result.Status.Label(),
		FanOutPublished: result.FanOutPublished,
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorResponse(w, err, nil)
}

func writeErrorWithCommitted(w http.ResponseWriter, err error, committed transitionResponse) {
	writeErrorResponse(w, err, &committed)
}

func writeErrorResponse(w http.ResponseWriter, err error, committed *transitionResponse) {
	appErr, ok := apperrors.AsError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			appErr = apperrors.Wrap(apperrors.CodeUnknown, "request cancelled", err)
		} else {
			appErr = apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
		}
	}

	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("events api error: %v", err)
	}
	writeJSON(w, status, errorResponse{
		Error: errorBody{
			Code:     string(appErr.Code),
			Message:  appErr.Message,
			Metadata: appErr.Metadata,
		},
		Committed: committed,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("events api encode response: %v", err)
	}
}
