package booking

import (
	"sort"
	"time"
)

// MaxRecommendations bounds the number of rooms returned to recommendation
// callers. The assignment path iterates the full ranked list and is not
// subject to this bound.
const MaxRecommendations = 10

// Room carries the catalog attributes the ranker scores on.
type Room struct {
	ID             string
	RoomNumber     string
	Floor          int
	AvailableSeats int
	UpdatedAt      time.Time
}

// Rank orders candidate rooms by fitness for a party of minSeats people.
//
// The sort key, each level a tie-break for the previous:
//  1. capacity delta ascending, so the tightest fit wins
//  2. exact preferred-floor match first (no credit for near floors)
//  3. more recently updated rooms first
//  4. room number ascending, which makes the order total
//
// The input slice is not modified. Running Rank twice on an unchanged
// candidate set yields an identical sequence.
func Rank(candidates []Room, minSeats int, preferredFloor *int) []Room {
	ranked := make([]Room, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		di := ranked[i].AvailableSeats - minSeats
		dj := ranked[j].AvailableSeats - minSeats
		if di != dj {
			return di < dj
		}
		if preferredFloor != nil {
			mi := ranked[i].Floor == *preferredFloor
			mj := ranked[j].Floor == *preferredFloor
			if mi != mj {
				return mi
			}
		}
		if !ranked[i].UpdatedAt.Equal(ranked[j].UpdatedAt) {
			return ranked[i].UpdatedAt.After(ranked[j].UpdatedAt)
		}
		return ranked[i].RoomNumber < ranked[j].RoomNumber
	})

	return ranked
}

// Top truncates a ranked sequence to the recommendation bound.
func Top(ranked []Room) []Room {
	if len(ranked) <= MaxRecommendations {
		return ranked
	}
	return ranked[:MaxRecommendations]
}
