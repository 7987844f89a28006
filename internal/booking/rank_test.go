package booking

import (
	"fmt"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func touched(minutesAgo int) time.Time {
	return time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC).Add(-time.Duration(minutesAgo) * time.Minute)
}

func TestRank(t *testing.T) {
	t.Run("tightest capacity fit wins", func(t *testing.T) {
		rooms := []Room{
			{ID: "big", RoomNumber: "301", Floor: 3, AvailableSeats: 20, UpdatedAt: touched(0)},
			{ID: "snug", RoomNumber: "102", Floor: 1, AvailableSeats: 5, UpdatedAt: touched(60)},
			{ID: "mid", RoomNumber: "201", Floor: 2, AvailableSeats: 8, UpdatedAt: touched(30)},
		}

		ranked := Rank(rooms, 4, nil)

		if ranked[0].ID != "snug" || ranked[1].ID != "mid" || ranked[2].ID != "big" {
			t.Fatalf("unexpected order: %s, %s, %s", ranked[0].ID, ranked[1].ID, ranked[2].ID)
		}
	})

	t.Run("preferred floor breaks capacity ties", func(t *testing.T) {
		rooms := []Room{
			{ID: "elsewhere", RoomNumber: "401", Floor: 4, AvailableSeats: 6, UpdatedAt: touched(0)},
			{ID: "on-floor", RoomNumber: "202", Floor: 2, AvailableSeats: 6, UpdatedAt: touched(120)},
		}

		ranked := Rank(rooms, 6, intPtr(2))

		if ranked[0].ID != "on-floor" {
			t.Fatalf("expected exact floor match first, got %s", ranked[0].ID)
		}
	})

	t.Run("no partial credit for near floors", func(t *testing.T) {
		rooms := []Room{
			{ID: "next-floor", RoomNumber: "301", Floor: 3, AvailableSeats: 6, UpdatedAt: touched(0)},
			{ID: "far-floor", RoomNumber: "901", Floor: 9, AvailableSeats: 6, UpdatedAt: touched(90)},
		}

		ranked := Rank(rooms, 6, intPtr(2))

		// Neither matches floor 2; recency decides.
		if ranked[0].ID != "next-floor" {
			t.Fatalf("expected recency tie-break, got %s first", ranked[0].ID)
		}
	})

	t.Run("recency breaks remaining ties", func(t *testing.T) {
		rooms := []Room{
			{ID: "stale", RoomNumber: "101", Floor: 1, AvailableSeats: 6, UpdatedAt: touched(240)},
			{ID: "fresh", RoomNumber: "103", Floor: 1, AvailableSeats: 6, UpdatedAt: touched(5)},
		}

		ranked := Rank(rooms, 6, intPtr(1))

		if ranked[0].ID != "fresh" {
			t.Fatalf("expected most recently updated room first, got %s", ranked[0].ID)
		}
	})

	t.Run("order is stable across re-scoring", func(t *testing.T) {
		rooms := make([]Room, 0, 12)
		for i := 0; i < 12; i++ {
			rooms = append(rooms, Room{
				ID:             fmt.Sprintf("room-%d", i),
				RoomNumber:     fmt.Sprintf("%03d", i),
				Floor:          i % 3,
				AvailableSeats: 4 + i%5,
				UpdatedAt:      touched(i % 4 * 15),
			})
		}

		first := Rank(rooms, 4, intPtr(1))
		second := Rank(rooms, 4, intPtr(1))

		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("rank not stable at position %d: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("input slice is untouched", func(t *testing.T) {
		rooms := []Room{
			{ID: "b", RoomNumber: "2", AvailableSeats: 9},
			{ID: "a", RoomNumber: "1", AvailableSeats: 4},
		}

		Rank(rooms, 4, nil)

		if rooms[0].ID != "b" {
			t.Fatalf("Rank mutated its input")
		}
	})
}

func TestTop(t *testing.T) {
	rooms := make([]Room, 0, MaxRecommendations+5)
	for i := 0; i < MaxRecommendations+5; i++ {
		rooms = append(rooms, Room{ID: fmt.Sprintf("room-%d", i), RoomNumber: fmt.Sprintf("%d", i), AvailableSeats: 4 + i})
	}

	top := Top(Rank(rooms, 4, nil))

	if len(top) != MaxRecommendations {
		t.Fatalf("expected %d results, got %d", MaxRecommendations, len(top))
	}
	if top[0].ID != "room-0" {
		t.Fatalf("expected tightest fit first, got %s", top[0].ID)
	}
}
