package persistence

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrConstraintViolation is returned when stored data would violate a
	// schema-level check such as a minimum capacity.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrStaleVersion is returned by conditional writes when the stored
	// record changed after the caller read it.
	ErrStaleVersion = errors.New("persistence: stale version")
	// ErrRoomOccupied matches OverlapError in errors.Is checks.
	ErrRoomOccupied = errors.New("persistence: room occupied")
)

// OverlapError reports that a meeting insert was refused because the room is
// already booked for an intersecting window. It carries the colliding
// meeting so callers can surface it.
type OverlapError struct {
	MeetingID string
	RoomID    string
	Start     time.Time
	End       time.Time
}

// Error implements the error interface.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("persistence: room %s occupied by meeting %s from %s to %s",
		e.RoomID, e.MeetingID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrRoomOccupied) succeed for OverlapError values.
func (e *OverlapError) Is(target error) bool {
	return target == ErrRoomOccupied
}
