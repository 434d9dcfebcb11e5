package engine

import "domino-engine/models"

// orient turns tile so that its A pip is the one touching end. A tile opening
// an empty train keeps its orientation.
func orient(tile models.Tile, end int) models.Tile {
	if end == models.OpenEnd || tile.A == end {
		return tile
	}
	return tile.Flip()
}

// firstPlayable scans the hand in order; the first tile matching an end wins
// and left is tried before right.
func firstPlayable(hand []models.Tile, leftEnd, rightEnd int) (int, models.Side, bool) {
	for i, t := range hand {
		if t.Matches(leftEnd) {
			return i, models.SideLeft, true
		}
		if t.Matches(rightEnd) {
			return i, models.SideRight, true
		}
	}
	return -1, models.SideNone, false
}

func endFor(side models.Side, leftEnd, rightEnd int) (int, bool) {
	switch side {
	case models.SideLeft:
		return leftEnd, true
	case models.SideRight:
		return rightEnd, true
	}
	return 0, false
}

func canDraw(handSize, poolSize int) bool {
	return poolSize > 0 && handSize < models.HandCap
}
