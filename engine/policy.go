package engine

import (
	"fmt"
	"sort"
	"time"
)

const (
	PolicyRoundRobin = "rr"
	PolicyFCFS       = "fcfs"
	PolicySJFTiles   = "sjf-tiles"
	PolicySJFPoints  = "sjf-points"
)

// SeatLoad is what a policy knows about a schedulable seat.
type SeatLoad struct {
	Seat      int
	Tiles     int
	Pips      int
	ArrivedAt time.Time
}

// Policy orders the seats the scheduler should invite. The scheduler still
// only invites a seat the game says holds the turn, so a policy can reorder
// invitations but never grant a turn.
type Policy interface {
	Name() string
	Order(turn int, seats []SeatLoad) []int
}

func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicyRoundRobin:
		return roundRobin{}, nil
	case PolicyFCFS:
		return sortedPolicy{name: PolicyFCFS, less: func(a, b SeatLoad) bool {
			return a.ArrivedAt.Before(b.ArrivedAt)
		}}, nil
	case PolicySJFTiles:
		return sortedPolicy{name: PolicySJFTiles, less: func(a, b SeatLoad) bool {
			return a.Tiles < b.Tiles
		}}, nil
	case PolicySJFPoints:
		return sortedPolicy{name: PolicySJFPoints, less: func(a, b SeatLoad) bool {
			return a.Pips < b.Pips
		}}, nil
	}
	return nil, fmt.Errorf("unknown scheduling policy %q", name)
}

type roundRobin struct{}

func (roundRobin) Name() string {
	return PolicyRoundRobin
}

// Order starts at the turn seat and follows the ring.
func (roundRobin) Order(turn int, seats []SeatLoad) []int {
	order := make([]int, 0, len(seats))
	for _, s := range seats {
		if s.Seat >= turn {
			order = append(order, s.Seat)
		}
	}
	for _, s := range seats {
		if s.Seat < turn {
			order = append(order, s.Seat)
		}
	}
	return order
}

type sortedPolicy struct {
	name string
	less func(a, b SeatLoad) bool
}

func (p sortedPolicy) Name() string {
	return p.name
}

func (p sortedPolicy) Order(_ int, seats []SeatLoad) []int {
	sorted := append([]SeatLoad(nil), seats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if p.less(sorted[i], sorted[j]) {
			return true
		}
		if p.less(sorted[j], sorted[i]) {
			return false
		}
		return sorted[i].Seat < sorted[j].Seat
	})
	order := make([]int, len(sorted))
	for i, s := range sorted {
		order[i] = s.Seat
	}
	return order
}
