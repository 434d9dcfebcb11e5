package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"domino-engine/models"
)

const DefaultTurnWaitTimeout = 500 * time.Millisecond

type AgentConfig struct {
	// TurnWaitTimeout bounds the wait for the validator after a submission.
	TurnWaitTimeout time.Duration
	IdlePoll        time.Duration
}

func (c AgentConfig) withDefaults() AgentConfig {
	if c.TurnWaitTimeout <= 0 {
		c.TurnWaitTimeout = DefaultTurnWaitTimeout
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = 5 * time.Millisecond
	}
	return c
}

// Agent drives one seat until the round ends or the seat leaves.
type Agent interface {
	Seat() int
	Run(ctx context.Context) error
}

// turnAction takes one decision. submitted reports a move went to the queue,
// left reports the seat retired from the round.
type turnAction func(ctx context.Context) (submitted bool, left bool, err error)

type seatRuntime struct {
	seat    int
	tableID string
	game    *Game
	desc    *SeatDescriptor
	queue   *MoveQueue
	cfg     AgentConfig
	logger  *zap.Logger
}

func newSeatRuntime(game *Game, desc *SeatDescriptor, queue *MoveQueue, cfg AgentConfig, logger *zap.Logger) seatRuntime {
	if logger == nil {
		logger = zap.NewNop()
	}
	return seatRuntime{
		seat:    desc.Seat(),
		tableID: game.TableID(),
		game:    game,
		desc:    desc,
		queue:   queue,
		cfg:     cfg.withDefaults(),
		logger: logger.Named("seat").With(
			zap.String("table_id", game.TableID()),
			zap.Int("seat", desc.Seat())),
	}
}

func (r *seatRuntime) Seat() int {
	return r.seat
}

func (r *seatRuntime) run(ctx context.Context, act turnAction) error {
	defer r.exit()

	for {
		if err := r.desc.WaitGrant(ctx); err != nil {
			return nil
		}
		if r.desc.IsTerminated() {
			return nil
		}

		finished, turn := r.game.Status()
		if finished {
			return nil
		}
		if turn != r.seat {
			if !sleepCtx(ctx, r.cfg.IdlePoll) {
				return nil
			}
			continue
		}

		processed := r.game.Processed()
		submitted, left, err := act(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if left {
			return nil
		}
		if submitted {
			r.awaitProgress(ctx, processed)
		}
	}
}

func (r *seatRuntime) exit() {
	if err := r.desc.Terminate(); err == nil {
		r.logger.Debug("seat terminated")
	}
}

func (r *seatRuntime) submit(mv models.Move) error {
	stored, err := r.queue.Submit(mv)
	if err != nil {
		return fmt.Errorf("seat %d failed to submit %s: %w", r.seat, mv.Kind, err)
	}
	r.logger.Debug("submitted move",
		zap.String("move_id", stored.ID),
		zap.String("kind", string(stored.Kind)),
		zap.Stringer("tile", stored.Tile))
	return nil
}

// awaitProgress waits until the validator consumed something after since, or
// the timeout passes.
func (r *seatRuntime) awaitProgress(ctx context.Context, since uint64) {
	timer := time.NewTimer(r.cfg.TurnWaitTimeout)
	defer timer.Stop()

	for {
		changed := r.game.Changed()
		if r.game.Processed() > since {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.logger.Debug("timed out waiting for validator")
			return
		case <-changed:
		}
	}
}

// AutonomousAgent plays the first playable tile, draws when it has none, and
// passes when it can do neither.
type AutonomousAgent struct {
	seatRuntime
}

func NewAutonomousAgent(game *Game, desc *SeatDescriptor, queue *MoveQueue, cfg AgentConfig, logger *zap.Logger) *AutonomousAgent {
	return &AutonomousAgent{seatRuntime: newSeatRuntime(game, desc, queue, cfg, logger)}
}

func (a *AutonomousAgent) Run(ctx context.Context) error {
	return a.run(ctx, a.takeTurn)
}

func (a *AutonomousAgent) takeTurn(ctx context.Context) (bool, bool, error) {
	var mv models.Move
	if tile, side, ok := a.game.CanPlay(a.seat); ok {
		mv = models.PlaceMove(a.tableID, a.seat, tile, side)
	} else if a.game.CanDraw(a.seat) {
		mv = models.DrawMove(a.tableID, a.seat)
	} else {
		mv = models.PassMove(a.tableID, a.seat)
	}
	return true, false, a.submit(mv)
}
