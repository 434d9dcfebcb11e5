package models

import "time"

type SeatState string

const (
	SeatReady      SeatState = "ready"
	SeatRunning    SeatState = "running"
	SeatTerminated SeatState = "terminated"
)

type SeatKind string

const (
	SeatAutonomous SeatKind = "autonomous"
	SeatHuman      SeatKind = "human"
)

// SeatInfo is the read-only view of a seat descriptor.
type SeatInfo struct {
	SeatID    int        `json:"seatId"`
	Kind      SeatKind   `json:"kind"`
	State     SeatState  `json:"state"`
	Policy    string     `json:"policy"`
	MayAct    bool       `json:"mayAct"`
	Bursts    int        `json:"bursts"`
	ArrivedAt time.Time  `json:"arrivedAt"`
	FirstRun  *time.Time `json:"firstRun,omitempty"`
	Finished  *time.Time `json:"finished,omitempty"`
}

// SeatView is the snapshot a seat decides on.
type SeatView struct {
	TableID  string `json:"tableId"`
	SeatID   int    `json:"seatId"`
	Train    []Tile `json:"train"`
	Hand     []Tile `json:"hand"`
	LeftEnd  int    `json:"leftEnd"`
	RightEnd int    `json:"rightEnd"`
	PoolSize int    `json:"poolSize"`
	Turn     int    `json:"turn"`
	Finished bool   `json:"finished"`
}
