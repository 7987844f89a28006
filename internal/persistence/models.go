package persistence

import "time"

// Room represents a bookable conference room catalog entry.
type Room struct {
	ID             string
	RoomNumber     string
	Floor          int
	AvailableSeats int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Meeting represents a committed booking. Meetings are immutable once
// created; there is no update or reschedule path.
type Meeting struct {
	ID          string
	RoomID      string
	OrganizerID string
	Start       time.Time
	End         time.Time
	CreatedAt   time.Time
}

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents a persisted refresh-token record issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
