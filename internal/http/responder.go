package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
)

var (
	errBadRequestBody      = errors.New("request body is malformed")
	errInvalidRoomID       = errors.New("room id is invalid")
	errMissingBearerToken  = errors.New("authorization bearer token is required")
	errMissingRefreshToken = errors.New("refresh token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto HTTP statuses. Version
// conflicts carry the authoritative room state and a merge proposal so
// clients can retry without refetching.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var vErr *application.ValidationError
	var versionErr *application.VersionConflictError
	var bookingErr *application.BookingConflictError

	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "the request contains invalid fields",
			Errors:    vErr.FieldErrors,
		})
	case errors.As(err, &versionErr):
		w.Header().Set("ETag", etagFor(versionErr.CurrentVersion))
		r.writeJSON(ctx, w, http.StatusPreconditionFailed, versionConflictResponse{
			ErrorCode: "VERSION_CONFLICT",
			Message:   "the room changed since it was last read",
			Current:   toRoomDTO(versionErr.Current),
			Proposed:  toRoomDTO(versionErr.Proposed),
		})
	case errors.As(err, &bookingErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   "the room is occupied during the requested window",
			Conflict: &bookingConflictDTO{
				RoomID:    bookingErr.RoomID,
				MeetingID: bookingErr.MeetingID,
				Start:     bookingErr.Start.UTC().Format(time.RFC3339Nano),
				End:       bookingErr.End.UTC().Format(time.RFC3339Nano),
			},
		})
	case errors.Is(err, application.ErrExhausted):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "EXHAUSTED",
			Message:   "no room satisfying the request is free during the window",
		})
	case errors.Is(err, application.ErrRoomInUse):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ROOM_IN_USE",
			Message:   "the room has active or upcoming meetings",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "a resource with the same identity already exists",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "email or password is incorrect",
		})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "the session is no longer valid, sign in again",
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "the operation is not permitted",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "the requested resource was not found"})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func etagFor(version string) string {
	return `"` + version + `"`
}

func versionFromETag(header string) string {
	return strings.Trim(strings.TrimSpace(header), `"`)
}

type errorResponse struct {
	ErrorCode string              `json:"error_code,omitempty"`
	Message   string              `json:"message"`
	Errors    map[string]string   `json:"errors,omitempty"`
	Conflict  *bookingConflictDTO `json:"conflict,omitempty"`
}

type bookingConflictDTO struct {
	RoomID    string `json:"room_id"`
	MeetingID string `json:"meeting_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type versionConflictResponse struct {
	ErrorCode string  `json:"error_code"`
	Message   string  `json:"message"`
	Current   roomDTO `json:"current"`
	Proposed  roomDTO `json:"proposed"`
}
