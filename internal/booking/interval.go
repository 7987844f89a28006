package booking

import "time"

// Meeting represents a booked slot in a room as seen by the overlap checker.
type Meeting struct {
	ID          string
	RoomID      string
	OrganizerID string
	Start       time.Time
	End         time.Time
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching endpoints do not count as overlap, so back-to-back
// bookings at the same instant are allowed.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// FirstConflict returns the first meeting whose window overlaps [start,end).
// Callers must pass the currently persisted meeting set for the room;
// evaluating a cached set risks double-booking under concurrent requests.
func FirstConflict(meetings []Meeting, start, end time.Time) (Meeting, bool) {
	for _, m := range meetings {
		if Overlaps(m.Start, m.End, start, end) {
			return m, true
		}
	}
	return Meeting{}, false
}

// HasConflict reports whether any meeting in the set overlaps [start,end).
func HasConflict(meetings []Meeting, start, end time.Time) bool {
	_, ok := FirstConflict(meetings, start, end)
	return ok
}
