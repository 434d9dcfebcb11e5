package engine

import (
	"errors"
	"fmt"

	"domino-engine/models"
)

var ErrIllegalDecision = errors.New("illegal decision")

// DecisionValidator checks a human decision against the snapshot it was made
// on. Rejected decisions go back to the collaborator and never reach the queue.
type DecisionValidator struct {
	view models.SeatView
}

func NewDecisionValidator(view models.SeatView) *DecisionValidator {
	return &DecisionValidator{view: view}
}

func (dv *DecisionValidator) Validate(d models.Decision) error {
	if d.Action == models.DecisionQuit {
		return nil
	}
	if dv.view.Finished {
		return fmt.Errorf("%w: round is already finished", ErrIllegalDecision)
	}
	if dv.view.Turn != dv.view.SeatID {
		return fmt.Errorf("%w: not your turn", ErrIllegalDecision)
	}

	switch d.Action {
	case models.DecisionPlay:
		return dv.validatePlay(d.TileIndex, d.Side)
	case models.DecisionDraw:
		return dv.validateDraw()
	case models.DecisionPass:
		return dv.validatePass()
	}
	return fmt.Errorf("%w: unknown action %q", ErrIllegalDecision, d.Action)
}

func (dv *DecisionValidator) validatePlay(tileIndex int, side models.Side) error {
	if tileIndex < 0 || tileIndex >= len(dv.view.Hand) {
		return fmt.Errorf("%w: tile index %d out of range (hand has %d tiles)", ErrIllegalDecision, tileIndex, len(dv.view.Hand))
	}
	end, ok := endFor(side, dv.view.LeftEnd, dv.view.RightEnd)
	if !ok {
		return fmt.Errorf("%w: side must be left or right", ErrIllegalDecision)
	}
	tile := dv.view.Hand[tileIndex]
	if !tile.Matches(end) {
		return fmt.Errorf("%w: %s does not match %s end %d", ErrIllegalDecision, tile, side, end)
	}
	return nil
}

func (dv *DecisionValidator) validateDraw() error {
	if dv.canPlace() {
		return fmt.Errorf("%w: cannot draw while holding a playable tile", ErrIllegalDecision)
	}
	if dv.view.PoolSize == 0 {
		return fmt.Errorf("%w: pool is empty", ErrIllegalDecision)
	}
	if len(dv.view.Hand) >= models.HandCap {
		return fmt.Errorf("%w: hand is full (%d tiles)", ErrIllegalDecision, models.HandCap)
	}
	return nil
}

func (dv *DecisionValidator) validatePass() error {
	if dv.canPlace() {
		return fmt.Errorf("%w: cannot pass while holding a playable tile", ErrIllegalDecision)
	}
	if canDraw(len(dv.view.Hand), dv.view.PoolSize) {
		return fmt.Errorf("%w: must draw from the pool before passing", ErrIllegalDecision)
	}
	return nil
}

func (dv *DecisionValidator) canPlace() bool {
	_, _, ok := firstPlayable(dv.view.Hand, dv.view.LeftEnd, dv.view.RightEnd)
	return ok
}

// ToMove translates an already validated decision.
func (dv *DecisionValidator) ToMove(d models.Decision) models.Move {
	switch d.Action {
	case models.DecisionPlay:
		return models.PlaceMove(dv.view.TableID, dv.view.SeatID, dv.view.Hand[d.TileIndex], d.Side)
	case models.DecisionDraw:
		return models.DrawMove(dv.view.TableID, dv.view.SeatID)
	case models.DecisionQuit:
		return models.LeaveMove(dv.view.TableID, dv.view.SeatID)
	}
	return models.PassMove(dv.view.TableID, dv.view.SeatID)
}
