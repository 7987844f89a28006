package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
}

// Room represents a catalog entry for a bookable conference room.
type Room struct {
	ID             string
	RoomNumber     string
	Floor          int
	AvailableSeats int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Version returns the room's optimistic-concurrency token: the last-modified
// timestamp rendered as RFC 3339 with nanoseconds, always in UTC.
func (r Room) Version() string {
	return r.UpdatedAt.UTC().Format(time.RFC3339Nano)
}

// RoomInput captures caller provided room fields for creation.
type RoomInput struct {
	RoomNumber     string
	Floor          int
	AvailableSeats int
}

// RoomPatch captures a partial room update. Nil fields are left unchanged.
type RoomPatch struct {
	RoomNumber     *string
	Floor          *int
	AvailableSeats *int
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	Principal Principal
	RoomID    string
	Patch     RoomPatch
	// ClientVersion is the version token the caller last observed. Empty
	// means the caller opted out of conflict detection.
	ClientVersion string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	Principal Principal
	Input     RoomInput
}

// Meeting represents a committed booking.
type Meeting struct {
	ID          string
	RoomID      string
	OrganizerID string
	Start       time.Time
	End         time.Time
	CreatedAt   time.Time
}

// RecommendParams wraps a recommendation query. Window fields are optional;
// when both are set, rooms occupied during the window are excluded before
// ranking.
type RecommendParams struct {
	Principal      Principal
	NumberOfPeople int
	PreferredFloor *int
	Start          *time.Time
	End            *time.Time
}

// AssignParams books a specific room for a window.
type AssignParams struct {
	Principal Principal
	RoomID    string
	Organizer string
	Start     time.Time
	End       time.Time
}

// AssignBestParams books the best available room matching search criteria.
type AssignBestParams struct {
	Principal      Principal
	NumberOfPeople int
	PreferredFloor *int
	Organizer      string
	Start          time.Time
	End            time.Time
}

// Assignment reports the outcome of a successful booking.
type Assignment struct {
	Room    Room
	Meeting Meeting
}

// User represents a registered account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Session represents a refresh-token session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// RegisterParams captures the data required to create an account.
type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
}

// LoginParams captures the data required to authenticate.
type LoginParams struct {
	Email    string
	Password string
}

// AuthResult carries the tokens issued on login or refresh.
type AuthResult struct {
	User         User
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
