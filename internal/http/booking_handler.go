package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/room-booking/internal/application"
)

type bookingService interface {
	Recommend(ctx context.Context, params application.RecommendParams) ([]application.Room, error)
	Assign(ctx context.Context, params application.AssignParams) (application.Assignment, error)
	AssignBest(ctx context.Context, params application.AssignBestParams) (application.Assignment, error)
}

// validate checks booking request shapes before they reach the service
// layer. Field names in violation reports follow the JSON tags.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Recommend returns the ranked list of rooms matching the request, best
// first. When a window is supplied, occupied rooms are excluded.
func (h *BookingHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Recommend", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode recommend request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if !h.validateRequest(w, r, "Recommend", req) {
		return
	}

	start, end, ok := h.parseOptionalWindow(w, r, "Recommend", req.Start, req.End)
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Recommend", "principal_id", principal.UserID, "number_of_people", req.NumberOfPeople)

	rooms, err := h.service.Recommend(r.Context(), application.RecommendParams{
		Principal:      principal,
		NumberOfPeople: req.NumberOfPeople,
		PreferredFloor: req.PreferredFloor,
		Start:          start,
		End:            end,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "recommendation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).InfoContext(r.Context(), "rooms recommended")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

// Assign books a room for the requested window. With a room_id the named
// room is booked; without one the best free match is chosen.
func (h *BookingHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Assign", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode assign request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if !h.validateRequest(w, r, "Assign", req) {
		return
	}

	start, ok := h.parseTimestamp(w, r, "Assign", "start", req.Start)
	if !ok {
		return
	}
	end, ok := h.parseTimestamp(w, r, "Assign", "end", req.End)
	if !ok {
		return
	}

	roomID := strings.TrimSpace(req.RoomID)
	logger := h.log(r.Context(), "Assign", "principal_id", principal.UserID, "room_id", roomID)

	var (
		assignment application.Assignment
		err        error
	)
	if roomID != "" {
		assignment, err = h.service.Assign(r.Context(), application.AssignParams{
			Principal: principal,
			RoomID:    roomID,
			Organizer: principal.UserID,
			Start:     start,
			End:       end,
		})
	} else {
		assignment, err = h.service.AssignBest(r.Context(), application.AssignBestParams{
			Principal:      principal,
			NumberOfPeople: req.NumberOfPeople,
			PreferredFloor: req.PreferredFloor,
			Organizer:      principal.UserID,
			Start:          start,
			End:            end,
		})
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "assignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With(
		"room_id", assignment.Room.ID,
		"meeting_id", assignment.Meeting.ID,
	).InfoContext(r.Context(), "room assigned")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assignmentResponse{
		Room:    toRoomDTO(assignment.Room),
		Meeting: toMeetingDTO(assignment.Meeting),
	})
}

func (h *BookingHandler) validateRequest(w http.ResponseWriter, r *http.Request, operation string, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}

	fieldErrors := make(map[string]string)
	if violations, ok := err.(validator.ValidationErrors); ok {
		for _, violation := range violations {
			fieldErrors[violation.Field()] = validationMessage(violation)
		}
	} else {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return false
	}

	h.log(r.Context(), operation, "error_kind", "validation").ErrorContext(r.Context(), "request validation failed", "fields", len(fieldErrors))
	h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "VALIDATION_FAILED",
		Message:   "the request contains invalid fields",
		Errors:    fieldErrors,
	})
	return false
}

func (h *BookingHandler) parseTimestamp(w http.ResponseWriter, r *http.Request, operation, field, value string) (time.Time, bool) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		h.log(r.Context(), operation, "error_kind", "validation").ErrorContext(r.Context(), "malformed timestamp", "field", field, "error", err)
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "the request contains invalid fields",
			Errors:    map[string]string{field: "must be an RFC 3339 timestamp"},
		})
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func (h *BookingHandler) parseOptionalWindow(w http.ResponseWriter, r *http.Request, operation string, start, end *string) (*time.Time, *time.Time, bool) {
	var startAt, endAt *time.Time
	if start != nil {
		parsed, ok := h.parseTimestamp(w, r, operation, "start", *start)
		if !ok {
			return nil, nil, false
		}
		startAt = &parsed
	}
	if end != nil {
		parsed, ok := h.parseTimestamp(w, r, operation, "end", *end)
		if !ok {
			return nil, nil, false
		}
		endAt = &parsed
	}
	return startAt, endAt, true
}

func validationMessage(violation validator.FieldError) string {
	switch violation.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + violation.Param()
	case "required_without":
		return "is required when " + violation.Param() + " is absent"
	default:
		return "is invalid"
	}
}

type recommendRequest struct {
	NumberOfPeople int     `json:"number_of_people" validate:"required,gte=1"`
	PreferredFloor *int    `json:"preferred_floor"`
	Start          *string `json:"start"`
	End            *string `json:"end"`
}

type assignRequest struct {
	RoomID         string `json:"room_id"`
	NumberOfPeople int    `json:"number_of_people" validate:"required_without=RoomID,omitempty,gte=1"`
	PreferredFloor *int   `json:"preferred_floor"`
	Start          string `json:"start" validate:"required"`
	End            string `json:"end" validate:"required"`
}

type assignmentResponse struct {
	Room    roomDTO    `json:"room"`
	Meeting meetingDTO `json:"meeting"`
}

type meetingDTO struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	OrganizerID string `json:"organizer_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	CreatedAt   string `json:"created_at"`
}

func toMeetingDTO(meeting application.Meeting) meetingDTO {
	return meetingDTO{
		ID:          meeting.ID,
		RoomID:      meeting.RoomID,
		OrganizerID: meeting.OrganizerID,
		Start:       meeting.Start.UTC().Format(time.RFC3339Nano),
		End:         meeting.End.UTC().Format(time.RFC3339Nano),
		CreatedAt:   meeting.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
