package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"domino-engine/models"
)

// ErrDeciderClosed means the collaborator is gone; the seat leaves the round.
var ErrDeciderClosed = errors.New("decider closed")

// Decider is the human collaborator behind a seat.
type Decider interface {
	Decide(ctx context.Context, view models.SeatView) (models.Decision, error)
	Reject(view models.SeatView, err error)
}

// HumanAgent forwards one externally supplied decision per turn. Illegal
// decisions are bounced back to the Decider and never reach the queue.
type HumanAgent struct {
	seatRuntime
	decider Decider
}

func NewHumanAgent(game *Game, desc *SeatDescriptor, queue *MoveQueue, decider Decider, cfg AgentConfig, logger *zap.Logger) *HumanAgent {
	return &HumanAgent{
		seatRuntime: newSeatRuntime(game, desc, queue, cfg, logger),
		decider:     decider,
	}
}

func (h *HumanAgent) Run(ctx context.Context) error {
	return h.run(ctx, h.takeTurn)
}

func (h *HumanAgent) takeTurn(ctx context.Context) (bool, bool, error) {
	for {
		view := h.game.SeatView(h.seat)
		if view.Finished || view.Turn != h.seat {
			return false, false, nil
		}

		decision, err := h.decider.Decide(ctx, view)
		if errors.Is(err, ErrDeciderClosed) {
			h.logger.Info("decider closed, leaving the round")
			return true, true, h.submit(models.LeaveMove(h.tableID, h.seat))
		}
		if err != nil {
			return false, false, err
		}

		dv := NewDecisionValidator(view)
		if err := dv.Validate(decision); err != nil {
			h.decider.Reject(view, err)
			continue
		}
		if err := h.submit(dv.ToMove(decision)); err != nil {
			return false, false, err
		}
		return true, decision.Action == models.DecisionQuit, nil
	}
}
