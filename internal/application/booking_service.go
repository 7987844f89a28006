package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/persistence"
)

// RoomCatalog exposes the candidate queries the booking service needs.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	// FilterRooms returns every room seating at least minSeats people,
	// further restricted to a floor when one is supplied. An empty result
	// is a normal outcome, not an error.
	FilterRooms(ctx context.Context, minSeats int, floor *int) ([]Room, error)
}

// MeetingStore persists bookings.
//
// CreateMeeting must treat the overlap check and the insert as one atomic
// unit per room: it returns *persistence.OverlapError and writes nothing
// when the room is occupied for any part of the meeting's window, and
// refreshes the room's updated_at in the same transaction on success.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	ListMeetingsOverlapping(ctx context.Context, roomIDs []string, start, end time.Time) ([]Meeting, error)
}

// BookingService implements room recommendation and the assignment
// transaction.
type BookingService struct {
	rooms       RoomCatalog
	meetings    MeetingStore
	events      EventPublisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(rooms RoomCatalog, meetings MeetingStore, events EventPublisher, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(rooms, meetings, events, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(rooms RoomCatalog, meetings MeetingStore, events EventPublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &BookingService{
		rooms:       rooms,
		meetings:    meetings,
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// Recommend returns up to booking.MaxRecommendations candidate rooms for a
// party, best fit first. When a window is supplied, rooms with an
// overlapping meeting are excluded before scoring; availability is a hard
// filter, never a ranking factor.
func (s *BookingService) Recommend(ctx context.Context, params RecommendParams) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Recommend",
		"principal_id", params.Principal.UserID,
		"number_of_people", params.NumberOfPeople,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to recommend rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms recommended")
	}()

	vErr := &ValidationError{}
	if params.NumberOfPeople < 1 {
		vErr.add("numberOfPeople", "number of people must be at least 1")
	}
	validateOptionalWindow(params.Start, params.End, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	candidates, err := s.availableCandidates(ctx, params.NumberOfPeople, params.PreferredFloor, params.Start, params.End)
	if err != nil {
		return nil, err
	}

	rooms = fromRankerRooms(booking.Top(booking.Rank(toRankerRooms(candidates), params.NumberOfPeople, params.PreferredFloor)), candidates)
	return
}

// Assign books a specific room for the window, or reports why it cannot.
func (s *BookingService) Assign(ctx context.Context, params AssignParams) (assignment Assignment, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Assign",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to assign room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("meeting_id", assignment.Meeting.ID).InfoContext(ctx, "room assigned")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.RoomID) == "" {
		vErr.add("roomId", "room id is required")
	}
	validateBookingRequest(params.Organizer, params.Start, params.End, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	room, err := s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	meeting, err := s.book(ctx, room.ID, params.Organizer, params.Start, params.End)
	if err != nil {
		return Assignment{}, err
	}

	return s.assigned(ctx, room, meeting), nil
}

// AssignBest finds candidates, ranks them, and commits the first room with
// no overlapping meeting. Every candidate occupied for the window yields
// ErrExhausted.
//
// The assignment path walks the full ranked list, not the truncated
// recommendation view.
func (s *BookingService) AssignBest(ctx context.Context, params AssignBestParams) (assignment Assignment, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "AssignBest",
		"principal_id", params.Principal.UserID,
		"number_of_people", params.NumberOfPeople,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to assign best room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", assignment.Room.ID, "meeting_id", assignment.Meeting.ID).InfoContext(ctx, "room assigned")
	}()

	vErr := &ValidationError{}
	if params.NumberOfPeople < 1 {
		vErr.add("numberOfPeople", "number of people must be at least 1")
	}
	validateBookingRequest(params.Organizer, params.Start, params.End, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	candidates, err := s.rooms.FilterRooms(ctx, params.NumberOfPeople, nil)
	if err != nil {
		return Assignment{}, err
	}
	ranked := fromRankerRooms(booking.Rank(toRankerRooms(candidates), params.NumberOfPeople, params.PreferredFloor), candidates)

	for _, room := range ranked {
		meeting, bookErr := s.book(ctx, room.ID, params.Organizer, params.Start, params.End)
		if bookErr != nil {
			var conflict *BookingConflictError
			if errors.As(bookErr, &conflict) {
				// Taken for this window; try the next candidate.
				continue
			}
			return Assignment{}, bookErr
		}
		return s.assigned(ctx, room, meeting), nil
	}

	err = ErrExhausted
	return
}

// book runs the atomic check-and-insert for one room.
func (s *BookingService) book(ctx context.Context, roomID, organizer string, start, end time.Time) (Meeting, error) {
	createdAt := s.now().UTC()
	meeting := Meeting{
		ID:          s.idGenerator(),
		RoomID:      roomID,
		OrganizerID: organizer,
		Start:       start.UTC(),
		End:         end.UTC(),
		CreatedAt:   createdAt,
	}

	persisted, err := s.meetings.CreateMeeting(ctx, meeting)
	if err != nil {
		var overlap *persistence.OverlapError
		if errors.As(err, &overlap) {
			return Meeting{}, &BookingConflictError{
				RoomID:    roomID,
				MeetingID: overlap.MeetingID,
				Start:     overlap.Start,
				End:       overlap.End,
			}
		}
		if errors.Is(err, persistence.ErrNotFound) {
			return Meeting{}, ErrNotFound
		}
		return Meeting{}, err
	}
	return persisted, nil
}

func (s *BookingService) assigned(ctx context.Context, room Room, meeting Meeting) Assignment {
	// The booking transaction refreshed the room's version; reflect that in
	// the response without requiring callers to re-read.
	room.UpdatedAt = meeting.CreatedAt
	s.events.PublishRoomEvent(ctx, RoomEvent{Op: EventRoomBooked, RoomID: room.ID, OccurredAt: meeting.CreatedAt})
	return Assignment{Room: room, Meeting: meeting}
}

// availableCandidates filters the catalog by capacity and, when a window is
// present, removes rooms with an overlapping meeting using a single range
// query across the candidate set.
func (s *BookingService) availableCandidates(ctx context.Context, minSeats int, preferredFloor *int, start, end *time.Time) ([]Room, error) {
	candidates, err := s.rooms.FilterRooms(ctx, minSeats, nil)
	if err != nil {
		return nil, err
	}
	if start == nil || end == nil || len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, room := range candidates {
		ids = append(ids, room.ID)
	}
	overlapping, err := s.meetings.ListMeetingsOverlapping(ctx, ids, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	if len(overlapping) == 0 {
		return candidates, nil
	}

	occupied := make(map[string]struct{}, len(overlapping))
	for _, m := range overlapping {
		occupied[m.RoomID] = struct{}{}
	}

	free := candidates[:0]
	for _, room := range candidates {
		if _, taken := occupied[room.ID]; !taken {
			free = append(free, room)
		}
	}
	return free, nil
}

func validateBookingRequest(organizer string, start, end time.Time, vErr *ValidationError) {
	if strings.TrimSpace(organizer) == "" {
		vErr.add("organizer", "organizer is required")
	}
	if start.IsZero() {
		vErr.add("fromTime", "start time is required")
	}
	if end.IsZero() {
		vErr.add("toTime", "end time is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("toTime", "end time must be after start time")
	}
}

func validateOptionalWindow(start, end *time.Time, vErr *ValidationError) {
	if start == nil && end == nil {
		return
	}
	if start == nil || end == nil {
		vErr.add("fromTime", "both start and end time are required for an availability window")
		return
	}
	if !start.Before(*end) {
		vErr.add("toTime", "end time must be after start time")
	}
}

func toRankerRooms(rooms []Room) []booking.Room {
	out := make([]booking.Room, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, booking.Room{
			ID:             room.ID,
			RoomNumber:     room.RoomNumber,
			Floor:          room.Floor,
			AvailableSeats: room.AvailableSeats,
			UpdatedAt:      room.UpdatedAt,
		})
	}
	return out
}

func fromRankerRooms(ranked []booking.Room, source []Room) []Room {
	if len(ranked) == 0 {
		return nil
	}
	byID := make(map[string]Room, len(source))
	for _, room := range source {
		byID[room.ID] = room
	}
	out := make([]Room, 0, len(ranked))
	for _, room := range ranked {
		if full, ok := byID[room.ID]; ok {
			out = append(out, full)
		}
	}
	return out
}
