package persistence

import (
	"context"
	"time"
)

// RoomFilter narrows candidate queries against the room catalog.
type RoomFilter struct {
	MinSeats int
	Floor    *int
}

// RoomRepository exposes catalog operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	// UpdateRoom persists the supplied room state. When expectedUpdatedAt is
	// non-nil the write is conditional: it only succeeds while the stored
	// updated_at still equals it, and returns ErrStaleVersion otherwise.
	UpdateRoom(ctx context.Context, room Room, expectedUpdatedAt *time.Time) error
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByNumber(ctx context.Context, roomNumber string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	FilterRooms(ctx context.Context, filter RoomFilter) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// MeetingRepository stores committed bookings.
//
// CreateMeeting must execute the overlap check and the insert as one atomic
// unit per room: when any stored meeting for meeting.RoomID overlaps the
// half-open window [meeting.Start, meeting.End) it returns *OverlapError and
// writes nothing. On success it also refreshes the owning room's updated_at
// to meeting.CreatedAt inside the same transaction.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	ListMeetingsForRoom(ctx context.Context, roomID string) ([]Meeting, error)
	// ListMeetingsOverlapping returns meetings for the given rooms whose
	// windows intersect [start, end), in one range query.
	ListMeetingsOverlapping(ctx context.Context, roomIDs []string, start, end time.Time) ([]Meeting, error)
	// CountMeetingsEndingAfter reports how many meetings for the room end
	// after the reference instant. Used by the room-deletion policy.
	CountMeetingsEndingAfter(ctx context.Context, roomID string, reference time.Time) (int, error)
}

// UserRepository exposes account storage.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// SessionRepository stores refresh-token session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
