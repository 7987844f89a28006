// Package memory provides a mutex-guarded in-memory implementation of the
// persistence contracts, used by tests and zero-dependency runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/persistence"
)

// Storage holds all records behind one mutex. Holding the write lock across
// the overlap check and the meeting insert gives CreateMeeting the per-room
// serialization the non-overlap invariant requires.
type Storage struct {
	mu       sync.RWMutex
	rooms    map[string]persistence.Room
	meetings map[string]persistence.Meeting
	users    map[string]persistence.User
	sessions map[string]persistence.Session
}

// Open returns an empty storage.
func Open() *Storage {
	return &Storage{
		rooms:    make(map[string]persistence.Room),
		meetings: make(map[string]persistence.Meeting),
		users:    make(map[string]persistence.User),
		sessions: make(map[string]persistence.Session),
	}
}

// Close releases resources held by the storage. No-op for memory.
func (s *Storage) Close() error {
	return nil
}

// --- RoomRepository ---

// CreateRoom stores a new room, enforcing room number uniqueness.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room.ID == "" || room.AvailableSeats < 1 {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.rooms[room.ID]; ok {
		return persistence.ErrDuplicate
	}
	if s.roomNumberTakenLocked(room.ID, room.RoomNumber) {
		return persistence.ErrDuplicate
	}

	s.rooms[room.ID] = room
	return nil
}

// UpdateRoom replaces a stored room, optionally as a conditional write on
// the previously observed updated_at.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room, expectedUpdatedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if expectedUpdatedAt != nil && !existing.UpdatedAt.Equal(*expectedUpdatedAt) {
		return persistence.ErrStaleVersion
	}
	if room.AvailableSeats < 1 {
		return persistence.ErrConstraintViolation
	}
	if s.roomNumberTakenLocked(room.ID, room.RoomNumber) {
		return persistence.ErrDuplicate
	}

	s.rooms[room.ID] = room
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, nil
}

// GetRoomByNumber retrieves a room by its unique label.
func (s *Storage) GetRoomByNumber(ctx context.Context, roomNumber string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, room := range s.rooms {
		if room.RoomNumber == roomNumber {
			return room, nil
		}
	}
	return persistence.Room{}, persistence.ErrNotFound
}

// ListRooms returns all rooms ordered by floor, then room number.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Floor != rooms[j].Floor {
			return rooms[i].Floor < rooms[j].Floor
		}
		return rooms[i].RoomNumber < rooms[j].RoomNumber
	})

	return rooms, nil
}

// FilterRooms returns rooms satisfying the capacity (and optional floor)
// constraint. An empty result is returned as an empty slice, not an error.
func (s *Storage) FilterRooms(ctx context.Context, filter persistence.RoomFilter) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0)
	for _, room := range s.rooms {
		if room.AvailableSeats < filter.MinSeats {
			continue
		}
		if filter.Floor != nil && room.Floor != *filter.Floor {
			continue
		}
		rooms = append(rooms, room)
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].RoomNumber < rooms[j].RoomNumber
	})

	return rooms, nil
}

// DeleteRoom removes a room by ID. Meetings referencing the room are kept.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.rooms, id)
	return nil
}

func (s *Storage) roomNumberTakenLocked(selfID, roomNumber string) bool {
	for id, room := range s.rooms {
		if id == selfID {
			continue
		}
		if room.RoomNumber == roomNumber {
			return true
		}
	}
	return false
}

// --- MeetingRepository ---

// CreateMeeting atomically verifies the room is free for the half-open
// window and inserts the meeting, bumping the room's updated_at. A
// colliding stored meeting aborts the write with *persistence.OverlapError.
func (s *Storage) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[meeting.RoomID]
	if !ok {
		return persistence.ErrNotFound
	}
	if meeting.ID == "" || !meeting.Start.Before(meeting.End) {
		return persistence.ErrConstraintViolation
	}

	for _, existing := range s.meetings {
		if existing.RoomID != meeting.RoomID {
			continue
		}
		if booking.Overlaps(existing.Start, existing.End, meeting.Start, meeting.End) {
			return &persistence.OverlapError{
				MeetingID: existing.ID,
				RoomID:    existing.RoomID,
				Start:     existing.Start,
				End:       existing.End,
			}
		}
	}

	s.meetings[meeting.ID] = meeting
	room.UpdatedAt = meeting.CreatedAt
	s.rooms[room.ID] = room
	return nil
}

// GetMeeting retrieves a meeting by ID.
func (s *Storage) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meeting, ok := s.meetings[id]
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return meeting, nil
}

// ListMeetingsForRoom returns a room's meetings ordered by start time.
func (s *Storage) ListMeetingsForRoom(ctx context.Context, roomID string) ([]persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meetings := make([]persistence.Meeting, 0)
	for _, meeting := range s.meetings {
		if meeting.RoomID == roomID {
			meetings = append(meetings, meeting)
		}
	}
	sortMeetings(meetings)
	return meetings, nil
}

// ListMeetingsOverlapping returns meetings for the given rooms intersecting
// [start, end).
func (s *Storage) ListMeetingsOverlapping(ctx context.Context, roomIDs []string, start, end time.Time) ([]persistence.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = struct{}{}
	}

	meetings := make([]persistence.Meeting, 0)
	for _, meeting := range s.meetings {
		if _, ok := wanted[meeting.RoomID]; !ok {
			continue
		}
		if booking.Overlaps(meeting.Start, meeting.End, start, end) {
			meetings = append(meetings, meeting)
		}
	}
	sortMeetings(meetings)
	return meetings, nil
}

// CountMeetingsEndingAfter reports how many meetings for the room end after
// the reference instant.
func (s *Storage) CountMeetingsEndingAfter(ctx context.Context, roomID string, reference time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, meeting := range s.meetings {
		if meeting.RoomID == roomID && meeting.End.After(reference) {
			count++
		}
	}
	return count, nil
}

func sortMeetings(meetings []persistence.Meeting) {
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].Start.Equal(meetings[j].Start) {
			return meetings[i].ID < meetings[j].ID
		}
		return meetings[i].Start.Before(meetings[j].Start)
	})
}

// --- UserRepository ---

// CreateUser stores a new account, enforcing email uniqueness.
func (s *Storage) CreateUser(ctx context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return persistence.ErrDuplicate
	}
	lower := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == lower {
			return persistence.ErrDuplicate
		}
	}

	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// --- SessionRepository ---

// CreateSession stores a refresh-token session.
func (s *Storage) CreateSession(ctx context.Context, session persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Token]; ok {
		return persistence.ErrDuplicate
	}
	s.sessions[session.Token] = session
	return nil
}

// GetSession retrieves a session by its token.
func (s *Storage) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

// RevokeSession marks a session revoked.
func (s *Storage) RevokeSession(ctx context.Context, token string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return persistence.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	session.UpdatedAt = revokedAt
	s.sessions[token] = session
	return nil
}

// DeleteExpiredSessions removes sessions whose expiry has passed.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if !reference.Before(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
	return nil
}
