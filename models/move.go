package models

import "time"

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
	SideNone  Side = "none"
)

type MoveKind string

const (
	MovePlace MoveKind = "place"
	MoveDraw  MoveKind = "draw"
	MovePass  MoveKind = "pass"
	MoveLeave MoveKind = "leave"
)

// Move is a proposed action addressed to one table. ID and Seq are stamped by
// the move queue on submission.
type Move struct {
	ID          string    `json:"id"`
	Seq         uint64    `json:"seq"`
	TableID     string    `json:"tableId"`
	SeatID      int       `json:"seatId"`
	Kind        MoveKind  `json:"kind"`
	Tile        Tile      `json:"tile"`
	Side        Side      `json:"side"`
	SubmittedAt time.Time `json:"submittedAt"`
}

func PlaceMove(tableID string, seat int, tile Tile, side Side) Move {
	return Move{TableID: tableID, SeatID: seat, Kind: MovePlace, Tile: tile, Side: side}
}

func PassMove(tableID string, seat int) Move {
	return Move{TableID: tableID, SeatID: seat, Kind: MovePass, Tile: NoTile, Side: SideNone}
}

func DrawMove(tableID string, seat int) Move {
	return Move{TableID: tableID, SeatID: seat, Kind: MoveDraw, Tile: NoTile, Side: SideNone}
}

func LeaveMove(tableID string, seat int) Move {
	return Move{TableID: tableID, SeatID: seat, Kind: MoveLeave, Tile: NoTile, Side: SideNone}
}

// IsPass also accepts the bare encoding: side none with the sentinel tile.
func (m Move) IsPass() bool {
	if m.Kind == MovePass {
		return true
	}
	return m.Kind == "" && m.Side == SideNone && m.Tile.IsSentinel()
}

// EffectiveKind infers the kind of a bare move: side none with the sentinel is
// a pass, side left or right is a placement. Unknown shapes return "".
func (m Move) EffectiveKind() MoveKind {
	switch {
	case m.Kind != "":
		return m.Kind
	case m.IsPass():
		return MovePass
	case m.Side == SideLeft || m.Side == SideRight:
		return MovePlace
	}
	return ""
}

type DecisionAction string

const (
	DecisionPlay DecisionAction = "play"
	DecisionDraw DecisionAction = "draw"
	DecisionPass DecisionAction = "pass"
	DecisionQuit DecisionAction = "quit"
)

// Decision is what a human collaborator answers for one turn.
type Decision struct {
	Action    DecisionAction `json:"action"`
	TileIndex int            `json:"tileIndex,omitempty"`
	Side      Side           `json:"side,omitempty"`
}
