package application

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when the caller lacks a valid identity.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a uniqueness rule is violated.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned for unknown email or bad password.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a refresh token is past its TTL.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a refresh token was revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrExhausted is returned when every candidate room is occupied for
	// the requested window. Distinct from ErrNotFound: the resource class
	// exists, but no instance satisfies the constraint.
	ErrExhausted = errors.New("application: no candidate room available")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// VersionConflictError reports that an optimistic room update collided with
// a newer write. It carries the current server state and a proposed merge
// the caller can resubmit to force the write through.
type VersionConflictError struct {
	Current        Room
	CurrentVersion string
	Proposed       Room
}

// Error implements the error interface.
func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("room %s was modified concurrently (current version %s)", e.Current.ID, e.CurrentVersion)
}

// BookingConflictError reports that the target room is already booked for an
// intersecting window, identifying the colliding meeting.
type BookingConflictError struct {
	RoomID    string
	MeetingID string
	Start     time.Time
	End       time.Time
}

// Error implements the error interface.
func (e *BookingConflictError) Error() string {
	return fmt.Sprintf("room %s already booked by meeting %s from %s to %s",
		e.RoomID, e.MeetingID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}
