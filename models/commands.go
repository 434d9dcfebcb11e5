package models

type Command struct {
	Command string                 `json:"command"`
	Data    map[string]interface{} `json:"data"`
}

type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Event struct {
	Event   string      `json:"event"`
	TableID string      `json:"tableId"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	EventTableStarted  = "tableStarted"
	EventRoundFinished = "roundFinished"
	EventTableStopped  = "tableStopped"
	EventSeatLeft      = "seatLeft"
)

type RoundFinishedEvent struct {
	Winner  int  `json:"winner"`
	Blocked bool `json:"blocked"`
	Moves   int  `json:"moves"`
}

type SeatLeftEvent struct {
	SeatID int `json:"seatId"`
}
