// Package testfixtures provides deterministic clocks, identifier
// generators, and record builders shared by tests across packages.
package testfixtures

import (
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
}

// ----------------------------- Room fixtures -----------------------------

// RoomOption configures the generated room fixture.
type RoomOption func(*persistence.Room)

// NewRoom returns a deterministic room record with optional overrides.
func NewRoom(opts ...RoomOption) persistence.Room {
	room := persistence.Room{
		ID:             "room-1",
		RoomNumber:     "101",
		Floor:          1,
		AvailableSeats: 8,
		CreatedAt:      ReferenceTime(),
		UpdatedAt:      ReferenceTime(),
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) { r.ID = id }
}

// WithRoomNumber overrides the generated room number.
func WithRoomNumber(number string) RoomOption {
	return func(r *persistence.Room) { r.RoomNumber = number }
}

// WithFloor overrides the generated floor.
func WithFloor(floor int) RoomOption {
	return func(r *persistence.Room) { r.Floor = floor }
}

// WithSeats overrides the generated seat count.
func WithSeats(seats int) RoomOption {
	return func(r *persistence.Room) { r.AvailableSeats = seats }
}

// WithRoomUpdatedAt sets the updated timestamp on the fixture.
func WithRoomUpdatedAt(t time.Time) RoomOption {
	return func(r *persistence.Room) { r.UpdatedAt = t }
}

// --------------------------- Meeting fixtures ----------------------------

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*persistence.Meeting)

// NewMeeting returns a deterministic meeting record starting one hour after
// ReferenceTime and lasting one hour, with optional overrides.
func NewMeeting(opts ...MeetingOption) persistence.Meeting {
	meeting := persistence.Meeting{
		ID:          "meeting-1",
		RoomID:      "room-1",
		OrganizerID: "user-1",
		Start:       ReferenceTime().Add(time.Hour),
		End:         ReferenceTime().Add(2 * time.Hour),
		CreatedAt:   ReferenceTime(),
	}
	for _, opt := range opts {
		opt(&meeting)
	}
	return meeting
}

// WithMeetingID overrides the generated meeting ID.
func WithMeetingID(id string) MeetingOption {
	return func(m *persistence.Meeting) { m.ID = id }
}

// WithMeetingRoom overrides the room the meeting occupies.
func WithMeetingRoom(roomID string) MeetingOption {
	return func(m *persistence.Meeting) { m.RoomID = roomID }
}

// WithWindow sets the meeting start and end times.
func WithWindow(start, end time.Time) MeetingOption {
	return func(m *persistence.Meeting) {
		m.Start = start
		m.End = end
	}
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures the generated user fixture.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user record with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	user := persistence.User{
		ID:           "user-1",
		Email:        "organizer@example.com",
		DisplayName:  "Organizer",
		PasswordHash: "$2a$10$fixturefixturefixturefixturefixturefixturefixturefix",
		CreatedAt:    ReferenceTime(),
		UpdatedAt:    ReferenceTime(),
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithPasswordHash overrides the generated password hash.
func WithPasswordHash(hash string) UserOption {
	return func(u *persistence.User) { u.PasswordHash = hash }
}
