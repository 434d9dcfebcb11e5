package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"domino-engine/models"
)

// Validator is the only writer of its table's Game. It drains the table's
// moves from the shared queue in submission order.
type Validator struct {
	tableID   string
	game      *Game
	queue     *MoveQueue
	ledger    *MoveLedger
	logger    *zap.Logger
	onApplied func(models.Move, Outcome)
}

func NewValidator(game *Game, queue *MoveQueue, logger *zap.Logger, onApplied func(models.Move, Outcome)) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		tableID:   game.TableID(),
		game:      game,
		queue:     queue,
		ledger:    NewMoveLedger(),
		logger:    logger.Named("validator").With(zap.String("table_id", game.TableID())),
		onApplied: onApplied,
	}
}

// Run consumes moves until the round finishes or ctx is cancelled.
func (v *Validator) Run(ctx context.Context) error {
	defer func() {
		if dropped := v.queue.Drop(v.tableID); dropped > 0 {
			v.logger.Debug("dropped moves queued after round end", zap.Int("count", dropped))
		}
	}()

	for !v.game.Finished() {
		mv, err := v.queue.TakeFor(ctx, v.tableID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrQueueClosed) {
				return nil
			}
			return err
		}
		v.Process(mv)
	}
	v.logger.Debug("round finished, validator exiting")
	return nil
}

// Process validates and applies a single move.
func (v *Validator) Process(mv models.Move) Outcome {
	if v.ledger.IsDuplicate(mv.ID) {
		v.game.markProcessed()
		v.logger.Debug("discarded resubmitted move", zap.String("move_id", mv.ID), zap.Int("seat", mv.SeatID))
		return Outcome{Reason: ReasonDuplicateMove}
	}

	out := v.game.apply(mv)
	if !out.Applied {
		v.logger.Debug("discarded move",
			zap.String("move_id", mv.ID),
			zap.Int("seat", mv.SeatID),
			zap.String("kind", string(mv.EffectiveKind())),
			zap.String("reason", out.Reason))
		return out
	}

	v.ledger.MarkProcessed(mv)
	fields := []zap.Field{
		zap.String("move_id", mv.ID),
		zap.Int("seat", mv.SeatID),
		zap.String("kind", string(mv.EffectiveKind())),
	}
	if mv.EffectiveKind() == models.MovePlace {
		fields = append(fields, zap.Stringer("tile", out.Placed), zap.String("side", string(mv.Side)))
	}
	v.logger.Debug("applied move", fields...)

	if v.onApplied != nil {
		v.onApplied(mv, out)
	}
	return out
}
