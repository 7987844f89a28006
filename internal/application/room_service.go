package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository captures the persistence operations needed by the service.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) (Room, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	// UpdateRoom is a conditional write: when expectedUpdatedAt is non-nil
	// it fails with persistence.ErrStaleVersion if the stored record moved
	// on after the caller read it.
	UpdateRoom(ctx context.Context, room Room, expectedUpdatedAt *time.Time) (Room, error)
	DeleteRoom(ctx context.Context, id string) error
	ListRooms(ctx context.Context) ([]Room, error)
}

// MeetingLedger exposes the booking lookups the room service needs to
// enforce its deletion policy.
type MeetingLedger interface {
	CountMeetingsEndingAfter(ctx context.Context, roomID string, reference time.Time) (int, error)
}

// ErrRoomInUse is returned when deletion is refused because the room still
// has current or future meetings. Past meetings are retained for audit and
// never block deletion.
var ErrRoomInUse = errors.New("application: room has active or future meetings")

// RoomService orchestrates validation, optimistic concurrency, and
// persistence for the room catalog.
type RoomService struct {
	rooms       RoomRepository
	meetings    MeetingLedger
	events      EventPublisher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomRepository, meetings MeetingLedger, events EventPublisher, idGenerator func() string, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, meetings, events, idGenerator, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomRepository, meetings MeetingLedger, events EventPublisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RoomService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &RoomService{
		rooms:       rooms,
		meetings:    meetings,
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new catalog entry.
func (s *RoomService) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"principal_id", params.Principal.UserID,
		"room_number", params.Input.RoomNumber,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	vErr := validateRoomInput(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	createdAt := s.now().UTC()
	room = Room{
		ID:             s.idGenerator(),
		RoomNumber:     strings.TrimSpace(params.Input.RoomNumber),
		Floor:          params.Input.Floor,
		AvailableSeats: params.Input.AvailableSeats,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}

	if s.rooms == nil {
		return
	}

	var persisted Room
	persisted, err = s.rooms.CreateRoom(ctx, room)
	if err != nil {
		err = mapRoomRepoError(err)
		room = Room{}
		return
	}

	room = persisted
	s.events.PublishRoomEvent(ctx, RoomEvent{Op: EventRoomCreated, RoomID: room.ID, OccurredAt: createdAt})
	return
}

// UpdateRoom applies a partial update guarded by the room's version token.
//
// A stale ClientVersion never mutates stored state: the caller receives a
// VersionConflictError with the current server room and a proposed merge
// (caller fields win, except available seats which take the larger of the
// two values) to confirm and resubmit.
func (s *RoomService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		err = fmt.Errorf("room repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_version", room.Version()).InfoContext(ctx, "room updated")
	}()

	var existing Room
	existing, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	if params.ClientVersion != "" && params.ClientVersion != existing.Version() {
		err = versionConflict(existing, params.Patch)
		return
	}

	vErr := validateRoomPatch(params.Patch)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := applyPatch(existing, params.Patch)
	updated.UpdatedAt = s.now().UTC()

	expected := existing.UpdatedAt
	room, err = s.rooms.UpdateRoom(ctx, updated, &expected)
	if err != nil {
		if errors.Is(err, persistence.ErrStaleVersion) {
			// Lost the race between our read and write; report against the
			// state that won.
			if current, getErr := s.rooms.GetRoom(ctx, params.RoomID); getErr == nil {
				err = versionConflict(current, params.Patch)
				return
			}
		}
		err = mapRoomRepoError(err)
		return
	}

	s.events.PublishRoomEvent(ctx, RoomEvent{Op: EventRoomUpdated, RoomID: room.ID, OccurredAt: room.UpdatedAt})
	return
}

// DeleteRoom removes a catalog entry. Deletion is refused while the room has
// meetings that end after now; historical meetings survive the delete and
// keep referencing the removed room id.
func (s *RoomService) DeleteRoom(ctx context.Context, principal Principal, roomID string) error {
	if s == nil {
		return fmt.Errorf("RoomService is nil")
	}
	if s.rooms == nil {
		return fmt.Errorf("room repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom",
		"principal_id", principal.UserID,
		"room_id", roomID,
	)

	if s.meetings != nil {
		active, err := s.meetings.CountMeetingsEndingAfter(ctx, roomID, s.now().UTC())
		if err != nil {
			logger.ErrorContext(ctx, "failed to check room bookings", "error", err)
			return err
		}
		if active > 0 {
			logger.With("active_meetings", active).ErrorContext(ctx, "room delete refused", "error_kind", "room_in_use")
			return ErrRoomInUse
		}
	}

	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		err = mapRoomRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	s.events.PublishRoomEvent(ctx, RoomEvent{Op: EventRoomDeleted, RoomID: roomID, OccurredAt: s.now().UTC()})
	return nil
}

// GetRoom returns a single catalog entry.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, ErrNotFound
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return room, nil
}

// ListRooms returns the catalog ordered by floor, then room number.
func (s *RoomService) ListRooms(ctx context.Context, principal Principal) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).InfoContext(ctx, "rooms listed")
	}()

	var raw []Room
	raw, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}

	rooms = make([]Room, len(raw))
	copy(rooms, raw)

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Floor != rooms[j].Floor {
			return rooms[i].Floor < rooms[j].Floor
		}
		return rooms[i].RoomNumber < rooms[j].RoomNumber
	})

	return
}

func versionConflict(current Room, patch RoomPatch) *VersionConflictError {
	proposed := applyPatch(current, patch)
	if patch.AvailableSeats != nil && current.AvailableSeats > *patch.AvailableSeats {
		// Never silently shrink capacity on conflicting concurrent edits.
		proposed.AvailableSeats = current.AvailableSeats
	}
	return &VersionConflictError{
		Current:        current,
		CurrentVersion: current.Version(),
		Proposed:       proposed,
	}
}

func applyPatch(room Room, patch RoomPatch) Room {
	if patch.RoomNumber != nil {
		room.RoomNumber = strings.TrimSpace(*patch.RoomNumber)
	}
	if patch.Floor != nil {
		room.Floor = *patch.Floor
	}
	if patch.AvailableSeats != nil {
		room.AvailableSeats = *patch.AvailableSeats
	}
	return room
}

func validateRoomInput(input RoomInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.RoomNumber) == "" {
		vErr.add("roomNumber", "room number is required")
	}
	if input.AvailableSeats < 1 {
		vErr.add("availableSeats", "available seats must be at least 1")
	}

	return vErr
}

func validateRoomPatch(patch RoomPatch) *ValidationError {
	vErr := &ValidationError{}

	if patch.RoomNumber != nil && strings.TrimSpace(*patch.RoomNumber) == "" {
		vErr.add("roomNumber", "room number is required")
	}
	if patch.AvailableSeats != nil && *patch.AvailableSeats < 1 {
		vErr.add("availableSeats", "available seats must be at least 1")
	}

	return vErr
}

func mapRoomRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("availableSeats", "available seats must be at least 1")
		return vErr
	}
	return err
}
