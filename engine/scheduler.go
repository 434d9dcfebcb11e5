package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"domino-engine/models"
)

const (
	DefaultQuantum          = 50 * time.Millisecond
	DefaultTerminationGrace = 2 * time.Second
)

type SchedulerConfig struct {
	Quantum          time.Duration
	EarlyRelease     bool
	TerminationGrace time.Duration
	IdlePoll         time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Quantum <= 0 {
		c.Quantum = DefaultQuantum
	}
	if c.TerminationGrace <= 0 {
		c.TerminationGrace = DefaultTerminationGrace
	}
	if c.IdlePoll <= 0 {
		c.IdlePoll = c.Quantum / 5
		if c.IdlePoll < time.Millisecond {
			c.IdlePoll = time.Millisecond
		}
	}
	return c
}

// Scheduler paces one table: it grants the turn seat permission to act for a
// quantum, then revokes it. Turn order itself belongs to the Game.
type Scheduler struct {
	tableID string
	game    *Game
	queue   *MoveQueue
	seats   []*SeatDescriptor
	policy  Policy
	cfg     SchedulerConfig
	logger  *zap.Logger

	leaveRequested map[int]bool
	quanta         int
}

func NewScheduler(game *Game, queue *MoveQueue, seats []*SeatDescriptor, policy Policy, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = roundRobin{}
	}
	return &Scheduler{
		tableID:        game.TableID(),
		game:           game,
		queue:          queue,
		seats:          seats,
		policy:         policy,
		cfg:            cfg.withDefaults(),
		logger:         logger.Named("scheduler").With(zap.String("table_id", game.TableID())),
		leaveRequested: make(map[int]bool),
	}
}

// Quanta is the number of quanta granted so far.
func (s *Scheduler) Quanta() int {
	return s.quanta
}

func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Debug("scheduler started", zap.String("policy", s.policy.Name()), zap.Duration("quantum", s.cfg.Quantum))

	for s.anyAlive() {
		if ctx.Err() != nil {
			return nil
		}

		finished, turn := s.game.Status()
		if finished {
			return s.drain(ctx)
		}

		seat := s.selectSeat(turn)
		if seat < 0 {
			if err := s.skipTerminated(turn); err != nil {
				return err
			}
			if !sleepCtx(ctx, s.cfg.IdlePoll) {
				return nil
			}
			continue
		}

		if err := s.runQuantum(ctx, s.seats[seat]); err != nil {
			return err
		}
	}
	return nil
}

// selectSeat returns the first seat in policy order that holds the turn, or -1
// when the turn seat is not schedulable.
func (s *Scheduler) selectSeat(turn int) int {
	tiles, pips := s.game.HandLoads()
	loads := make([]SeatLoad, 0, len(s.seats))
	for _, d := range s.seats {
		if d.IsTerminated() {
			continue
		}
		info := d.Info()
		loads = append(loads, SeatLoad{
			Seat:      d.Seat(),
			Tiles:     tiles[d.Seat()],
			Pips:      pips[d.Seat()],
			ArrivedAt: info.ArrivedAt,
		})
	}

	for _, seat := range s.policy.Order(turn, loads) {
		if s.game.IsTurn(seat) {
			return seat
		}
	}
	return -1
}

// skipTerminated asks the validator to retire a terminated seat that still
// holds the turn. No quantum is consumed.
func (s *Scheduler) skipTerminated(turn int) error {
	if turn < 0 || turn >= len(s.seats) || !s.seats[turn].IsTerminated() {
		return nil
	}
	if s.leaveRequested[turn] {
		return nil
	}
	s.leaveRequested[turn] = true

	next := s.game.NextActiveSeat(turn, s.isTerminated)
	s.logger.Info("turn held by terminated seat, skipping", zap.Int("seat", turn), zap.Int("next", next))
	if _, err := s.queue.Submit(models.LeaveMove(s.tableID, turn)); err != nil {
		return fmt.Errorf("failed to retire seat %d: %w", turn, err)
	}
	return nil
}

func (s *Scheduler) runQuantum(ctx context.Context, d *SeatDescriptor) error {
	if err := d.Dispatch(); err != nil {
		if errors.Is(err, ErrInvalidTransition) && d.IsTerminated() {
			return nil
		}
		return err
	}
	s.quanta++
	d.Grant()

	s.waitQuantum(ctx, d)

	d.Revoke()
	return d.Preempt()
}

func (s *Scheduler) waitQuantum(ctx context.Context, d *SeatDescriptor) {
	timer := time.NewTimer(s.cfg.Quantum)
	defer timer.Stop()

	for {
		var changed <-chan struct{}
		if s.cfg.EarlyRelease {
			changed = s.game.Changed()
			if !s.game.IsTurn(d.Seat()) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-d.Terminated():
			return
		case <-changed:
		}
	}
}

// drain lets every remaining seat observe the end of the round, then waits for
// them to exit. Seats that overstay the grace period are terminated.
func (s *Scheduler) drain(ctx context.Context) error {
	for _, d := range s.seats {
		d.Grant()
	}

	deadline := time.Now().Add(s.cfg.TerminationGrace)
	for s.anyAlive() {
		if time.Now().After(deadline) {
			s.forceTerminate()
			break
		}
		if !sleepCtx(ctx, s.cfg.IdlePoll) {
			return nil
		}
	}
	s.logger.Debug("all seats terminated", zap.Int("quanta", s.quanta))
	return nil
}

func (s *Scheduler) forceTerminate() {
	for _, d := range s.seats {
		if err := d.Terminate(); err == nil {
			s.logger.Warn("seat did not exit after round end, force-terminated",
				zap.Int("seat", d.Seat()),
				zap.Duration("grace", s.cfg.TerminationGrace))
		}
	}
}

func (s *Scheduler) anyAlive() bool {
	for _, d := range s.seats {
		if !d.IsTerminated() {
			return true
		}
	}
	return false
}

func (s *Scheduler) isTerminated(seat int) bool {
	return s.seats[seat].IsTerminated()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
