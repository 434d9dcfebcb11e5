package engine

type PositionFinder struct {
	seats int
}

func NewPositionFinder(seats int) *PositionFinder {
	return &PositionFinder{seats: seats}
}

// findNext walks the ring starting after currentPos. The current seat itself is
// the last candidate. Returns -1 when no seat passes the filter.
func (pf *PositionFinder) findNext(currentPos int, filter SeatFilter) int {
	if pf.seats == 0 {
		return -1
	}
	if currentPos < 0 {
		currentPos = pf.seats - 1
	}

	nextPos := (currentPos + 1) % pf.seats
	for checked := 0; checked < pf.seats; checked++ {
		if filter(nextPos) {
			return nextPos
		}
		nextPos = (nextPos + 1) % pf.seats
	}
	return -1
}

func (pf *PositionFinder) findFirst(filter SeatFilter) int {
	for seat := 0; seat < pf.seats; seat++ {
		if filter(seat) {
			return seat
		}
	}
	return -1
}
