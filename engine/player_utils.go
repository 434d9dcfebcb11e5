package engine

import "domino-engine/models"

type SeatFilter func(seat int) bool

func not(filter SeatFilter) SeatFilter {
	return func(seat int) bool { return !filter(seat) }
}

func both(a, b SeatFilter) SeatFilter {
	return func(seat int) bool { return a(seat) && b(seat) }
}

func countSeats(seats int, filter SeatFilter) int {
	count := 0
	for seat := 0; seat < seats; seat++ {
		if filter(seat) {
			count++
		}
	}
	return count
}

func removeTile(hand []models.Tile, idx int) []models.Tile {
	updated := make([]models.Tile, 0, len(hand)-1)
	updated = append(updated, hand[:idx]...)
	return append(updated, hand[idx+1:]...)
}

func indexOfTile(hand []models.Tile, tile models.Tile) int {
	for i, t := range hand {
		if t.Equal(tile) {
			return i
		}
	}
	return -1
}

func copyTiles(tiles []models.Tile) []models.Tile {
	out := make([]models.Tile, len(tiles))
	copy(out, tiles)
	return out
}

// dealSize picks the per-seat deal so that five seats still leave a pool.
func dealSize(seats int) int {
	if seats >= 5 {
		return 5
	}
	return 7
}
