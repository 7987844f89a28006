package booking

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2025, time.March, 3, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"identical windows", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"partial overlap at start", at(9, 0), at(10, 0), at(9, 30), at(10, 30), true},
		{"partial overlap at end", at(9, 30), at(10, 30), at(9, 0), at(10, 0), true},
		{"contained window", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"containing window", at(10, 0), at(11, 0), at(9, 0), at(12, 0), true},
		{"back-to-back, first ends as second starts", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"back-to-back, second ends as first starts", at(10, 0), at(11, 0), at(9, 0), at(10, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(14, 0), at(15, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Fatalf("Overlaps(%v, %v, %v, %v) = %v, want %v", tc.s1, tc.e1, tc.s2, tc.e2, got, tc.want)
			}
			// The relation is symmetric.
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Fatalf("Overlaps is not symmetric for %q", tc.name)
			}
		})
	}
}

func TestFirstConflict(t *testing.T) {
	meetings := []Meeting{
		{ID: "m-1", RoomID: "room-1", Start: at(9, 0), End: at(10, 0)},
		{ID: "m-2", RoomID: "room-1", Start: at(13, 0), End: at(14, 0)},
	}

	t.Run("returns the colliding meeting", func(t *testing.T) {
		conflict, ok := FirstConflict(meetings, at(13, 30), at(15, 0))
		if !ok {
			t.Fatalf("expected a conflict")
		}
		if conflict.ID != "m-2" {
			t.Fatalf("expected meeting m-2, got %s", conflict.ID)
		}
	})

	t.Run("no conflict for a free gap", func(t *testing.T) {
		if _, ok := FirstConflict(meetings, at(10, 0), at(13, 0)); ok {
			t.Fatalf("expected no conflict for the gap between meetings")
		}
	})

	t.Run("empty meeting set never conflicts", func(t *testing.T) {
		if HasConflict(nil, at(9, 0), at(17, 0)) {
			t.Fatalf("expected no conflict against empty set")
		}
	})
}
