package models

import "time"

type TableStatus string

const (
	StatusWaiting   TableStatus = "waiting"
	StatusPlaying   TableStatus = "playing"
	StatusFinished  TableStatus = "finished"
	StatusCompleted TableStatus = "completed"
	StatusStopped   TableStatus = "stopped"
)

const (
	MinSeats = 2
	MaxSeats = 5
)

type TableConfig struct {
	Seats            int           `json:"seats"`
	HumanSeat        int           `json:"humanSeat"`
	Policy           string        `json:"policy"`
	Quantum          time.Duration `json:"quantum"`
	EarlyRelease     bool          `json:"earlyRelease"`
	TurnWaitTimeout  time.Duration `json:"turnWaitTimeout"`
	TerminationGrace time.Duration `json:"terminationGrace"`
	HistoryTail      int           `json:"historyTail"`
}

// TableSnapshot is what observers get to see of one table.
type TableSnapshot struct {
	TableID           string      `json:"tableId"`
	Status            TableStatus `json:"status"`
	Train             []Tile      `json:"train"`
	LeftEnd           int         `json:"leftEnd"`
	RightEnd          int         `json:"rightEnd"`
	PoolSize          int         `json:"poolSize"`
	Turn              *int        `json:"turn,omitempty"`
	HandSizes         []int       `json:"handSizes"`
	PipTotals         []int       `json:"pipTotals,omitempty"`
	Seats             []SeatInfo  `json:"seats,omitempty"`
	RecentMoves       []Move      `json:"recentMoves"`
	MoveCount         int         `json:"moveCount"`
	ConsecutivePasses int         `json:"consecutivePasses"`
	Finished          bool        `json:"finished"`
	Winner            *int        `json:"winner,omitempty"`
	Blocked           bool        `json:"blocked"`
	Version           uint64      `json:"version"`
	CapturedAt        time.Time   `json:"capturedAt"`
}

// RoundRecord is the complete outcome of a finished round.
type RoundRecord struct {
	TableID    string    `json:"tableId"`
	Winner     int       `json:"winner"`
	Blocked    bool      `json:"blocked"`
	PipTotals  []int     `json:"pipTotals"`
	History    []Move    `json:"history"`
	FinishedAt time.Time `json:"finishedAt"`
}
