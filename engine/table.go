package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"domino-engine/models"
)

var (
	ErrTableStarted   = errors.New("table already started")
	ErrInvalidSeat    = errors.New("invalid seat")
	ErrDeciderMissing = errors.New("human seat needs a decider")
)

// Table bundles one round: the Game, its Validator and Scheduler, and one
// agent per seat.
type Table struct {
	id        string
	cfg       models.TableConfig
	game      *Game
	queue     *MoveQueue
	seats     []*SeatDescriptor
	agents    []Agent
	validator *Validator
	scheduler *Scheduler
	logger    *zap.Logger
	onEvent   func(models.Event)

	mu      sync.Mutex
	status  models.TableStatus
	cancel  context.CancelFunc
	errs    []error
	wg      sync.WaitGroup
	done    chan struct{}
	started bool
}

func NewTable(tableID string, cfg models.TableConfig, queue *MoveQueue, deck *models.Deck, decider Decider, logger *zap.Logger, onEvent func(models.Event)) (*Table, error) {
	if deck == nil {
		deck = models.NewDeck()
	}
	game, err := NewGame(tableID, cfg.Seats, deck)
	if err != nil {
		return nil, err
	}
	return NewTableFromGame(game, cfg, queue, decider, logger, onEvent)
}

// NewTableFromGame builds a table around an already dealt game.
func NewTableFromGame(game *Game, cfg models.TableConfig, queue *MoveQueue, decider Decider, logger *zap.Logger, onEvent func(models.Event)) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Seats = game.Seats()
	if cfg.HumanSeat >= cfg.Seats || cfg.HumanSeat < -1 {
		return nil, fmt.Errorf("%w: human seat %d at a %d-seat table", ErrInvalidSeat, cfg.HumanSeat, cfg.Seats)
	}
	if cfg.HumanSeat >= 0 && decider == nil {
		return nil, ErrDeciderMissing
	}
	policy, err := PolicyByName(cfg.Policy)
	if err != nil {
		return nil, err
	}

	t := &Table{
		id:      game.TableID(),
		cfg:     cfg,
		game:    game,
		queue:   queue,
		logger:  logger.Named("table").With(zap.String("table_id", game.TableID())),
		onEvent: onEvent,
		status:  models.StatusWaiting,
		done:    make(chan struct{}),
	}

	agentCfg := AgentConfig{TurnWaitTimeout: cfg.TurnWaitTimeout}
	for seat := 0; seat < cfg.Seats; seat++ {
		kind := models.SeatAutonomous
		if seat == cfg.HumanSeat {
			kind = models.SeatHuman
		}
		desc := NewSeatDescriptor(seat, kind, policy.Name())
		t.seats = append(t.seats, desc)

		if kind == models.SeatHuman {
			t.agents = append(t.agents, NewHumanAgent(game, desc, queue, decider, agentCfg, logger))
		} else {
			t.agents = append(t.agents, NewAutonomousAgent(game, desc, queue, agentCfg, logger))
		}
	}

	t.validator = NewValidator(game, queue, logger, t.onApplied)
	t.scheduler = NewScheduler(game, queue, t.seats, policy, SchedulerConfig{
		Quantum:          cfg.Quantum,
		EarlyRelease:     cfg.EarlyRelease,
		TerminationGrace: cfg.TerminationGrace,
	}, logger)
	return t, nil
}

func (t *Table) ID() string {
	return t.id
}

func (t *Table) Game() *Game {
	return t.game
}

func (t *Table) Config() models.TableConfig {
	return t.cfg
}

func (t *Table) Status() models.TableStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Start launches the validator, the scheduler and every seat agent. The table
// stops when the round is over and every seat has exited, or when ctx ends.
func (t *Table) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrTableStarted
	}
	t.started = true
	t.status = models.StatusPlaying
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	t.emit(models.EventTableStarted, map[string]interface{}{
		"seats":  t.cfg.Seats,
		"policy": t.scheduler.policy.Name(),
	})
	t.logger.Info("table started",
		zap.Int("seats", t.cfg.Seats),
		zap.String("policy", t.scheduler.policy.Name()),
		zap.Int("human_seat", t.cfg.HumanSeat))

	t.launch(ctx, "validator", t.validator.Run)
	t.launch(ctx, "scheduler", func(ctx context.Context) error {
		// Once the scheduler is done no seat is left to serve.
		defer t.cancel()
		return t.scheduler.Run(ctx)
	})
	for _, agent := range t.agents {
		agent := agent
		t.launch(ctx, fmt.Sprintf("seat %d", agent.Seat()), agent.Run)
	}

	go t.finish()
	return nil
}

func (t *Table) launch(ctx context.Context, name string, run func(context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := run(ctx); err != nil {
			t.logger.Error("table worker failed", zap.String("worker", name), zap.Error(err))
			t.mu.Lock()
			t.errs = append(t.errs, fmt.Errorf("%s: %w", name, err))
			t.mu.Unlock()
			t.cancel()
		}
	}()
}

func (t *Table) finish() {
	t.wg.Wait()

	t.mu.Lock()
	if t.game.Finished() {
		t.status = models.StatusCompleted
	} else {
		t.status = models.StatusStopped
	}
	status := t.status
	t.mu.Unlock()

	t.logger.Info("table stopped", zap.String("status", string(status)), zap.Int("quanta", t.scheduler.Quanta()))
	t.emit(models.EventTableStopped, map[string]interface{}{"status": status})
	close(t.done)
}

// Cancel stops the table without waiting for its workers, so it is safe to
// call from one of them. It reports whether the table had been started.
func (t *Table) Cancel() bool {
	t.mu.Lock()
	started, cancel := t.started, t.cancel
	t.mu.Unlock()
	if !started {
		return false
	}
	cancel()
	return true
}

// Stop cancels the table and waits for its workers.
func (t *Table) Stop() error {
	if !t.Cancel() {
		return nil
	}
	return t.Wait()
}

// Wait blocks until every worker has exited and reports their failures.
func (t *Table) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.errs...)
}

func (t *Table) Done() <-chan struct{} {
	return t.done
}

func (t *Table) SeatInfos() []models.SeatInfo {
	infos := make([]models.SeatInfo, len(t.seats))
	for i, d := range t.seats {
		infos[i] = d.Info()
	}
	return infos
}

func (t *Table) Snapshot() models.TableSnapshot {
	return t.decorate(t.game.Snapshot(t.cfg.HistoryTail))
}

// TrySnapshot skips instead of waiting when the validator holds the lock.
func (t *Table) TrySnapshot() (models.TableSnapshot, bool) {
	snap, ok := t.game.TrySnapshot(t.cfg.HistoryTail)
	if !ok {
		return snap, false
	}
	return t.decorate(snap), true
}

func (t *Table) TryRoundRecord() (models.RoundRecord, bool) {
	return t.game.TryRoundRecord()
}

func (t *Table) decorate(snap models.TableSnapshot) models.TableSnapshot {
	snap.Seats = t.SeatInfos()
	switch status := t.Status(); status {
	case models.StatusWaiting, models.StatusCompleted, models.StatusStopped:
		snap.Status = status
	}
	return snap
}

func (t *Table) onApplied(mv models.Move, out Outcome) {
	if mv.Kind == models.MoveLeave {
		t.logger.Info("seat left the round", zap.Int("seat", mv.SeatID))
		t.emit(models.EventSeatLeft, models.SeatLeftEvent{SeatID: mv.SeatID})
	}
	if !out.Finished {
		return
	}

	snap := t.game.Snapshot(0)
	winner := -1
	if snap.Winner != nil {
		winner = *snap.Winner
	}
	t.logger.Info("round finished",
		zap.Int("winner", winner),
		zap.Bool("blocked", snap.Blocked),
		zap.Int("moves", snap.MoveCount),
		zap.Ints("pip_totals", snap.PipTotals))
	t.emit(models.EventRoundFinished, models.RoundFinishedEvent{
		Winner:  winner,
		Blocked: snap.Blocked,
		Moves:   snap.MoveCount,
	})
}

func (t *Table) emit(name string, data interface{}) {
	if t.onEvent == nil {
		return
	}
	t.onEvent(models.Event{Event: name, TableID: t.id, Data: data})
}
