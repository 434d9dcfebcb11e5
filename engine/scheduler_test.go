package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"domino-engine/models"
)

type roundHarness struct {
	game      *Game
	queue     *MoveQueue
	seats     []*SeatDescriptor
	scheduler *Scheduler
}

func newRoundHarness(t *testing.T, game *Game, policy string, cfg SchedulerConfig) *roundHarness {
	t.Helper()
	p, err := PolicyByName(policy)
	if err != nil {
		t.Fatalf("PolicyByName failed: %v", err)
	}
	h := &roundHarness{game: game, queue: NewMoveQueue(64)}
	for seat := 0; seat < game.Seats(); seat++ {
		h.seats = append(h.seats, NewSeatDescriptor(seat, models.SeatAutonomous, p.Name()))
	}
	h.scheduler = NewScheduler(game, h.queue, h.seats, p, cfg, nil)
	return h
}

// run plays the round with autonomous agents and fails the test on timeout.
func (h *roundHarness) run(t *testing.T, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	start := func(run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				t.Errorf("worker failed: %v", err)
			}
		}()
	}
	start(NewValidator(h.game, h.queue, nil, nil).Run)
	start(h.scheduler.Run)
	for _, d := range h.seats {
		start(NewAutonomousAgent(h.game, d, h.queue, AgentConfig{}, nil).Run)
	}
	wg.Wait()

	if ctx.Err() != nil {
		t.Fatalf("round did not complete within %s", timeout)
	}
}

func TestScheduler_PlaysRoundToCompletion(t *testing.T) {
	for _, policy := range []string{PolicyRoundRobin, PolicyFCFS, PolicySJFTiles, PolicySJFPoints} {
		t.Run(policy, func(t *testing.T) {
			game, err := NewGame("t", 4, models.NewSeededDeck(7))
			if err != nil {
				t.Fatalf("NewGame failed: %v", err)
			}
			h := newRoundHarness(t, game, policy, SchedulerConfig{Quantum: 2 * time.Millisecond})
			h.run(t, 10*time.Second)

			if !game.Finished() {
				t.Fatal("Expected the round to finish")
			}
			for _, d := range h.seats {
				if !d.IsTerminated() {
					t.Errorf("Expected seat %d terminated", d.Seat())
				}
			}
			if h.scheduler.Quanta() == 0 {
				t.Error("Expected at least one quantum")
			}
			assertConserved(t, game)
		})
	}
}

func TestScheduler_EarlyReleaseEndsQuantumOnTurnChange(t *testing.T) {
	game, err := NewGame("t", 2, models.NewSeededDeck(3))
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	h := newRoundHarness(t, game, PolicyRoundRobin, SchedulerConfig{
		Quantum:      time.Second,
		EarlyRelease: true,
		IdlePoll:     time.Millisecond,
	})

	started := time.Now()
	h.run(t, 5*time.Second)

	// Without early release every turn would hold the full second.
	if elapsed := time.Since(started); elapsed > 3*time.Second {
		t.Errorf("Expected early release to keep the round short, took %s", elapsed)
	}
	if !game.Finished() {
		t.Fatal("Expected the round to finish")
	}
}

func TestScheduler_SkipsTerminatedTurnSeat(t *testing.T) {
	hands := [][]models.Tile{
		{tile(6, 6), tile(0, 0)},
		{tile(1, 2)},
		{tile(3, 4)},
	}
	game := mustGame(t, hands, nil, 0)
	apply(t, game, models.PlaceMove("t", 0, tile(6, 6), models.SideLeft))

	h := newRoundHarness(t, game, PolicyRoundRobin, SchedulerConfig{})
	h.seats[1].Terminate()

	if seat := h.scheduler.selectSeat(1); seat != -1 {
		t.Errorf("Expected no schedulable seat, got %d", seat)
	}
	if err := h.scheduler.skipTerminated(1); err != nil {
		t.Fatalf("skipTerminated failed: %v", err)
	}
	if err := h.scheduler.skipTerminated(1); err != nil {
		t.Fatalf("skipTerminated failed: %v", err)
	}
	if n := h.queue.LenFor("test-table"); n != 1 {
		t.Fatalf("Expected exactly one leave queued, got %d", n)
	}

	mv, _ := h.queue.TakeFor(context.Background(), "test-table")
	if mv.Kind != models.MoveLeave || mv.SeatID != 1 {
		t.Errorf("Expected seat 1 to leave, got %s by %d", mv.Kind, mv.SeatID)
	}
	apply(t, game, mv)
	if !game.IsTurn(2) {
		t.Error("Expected the turn to move past the terminated seat")
	}
}

func TestScheduler_DrainForceTerminates(t *testing.T) {
	game := mustGame(t, [][]models.Tile{{tile(6, 6)}, {tile(1, 2)}}, nil, 0)
	apply(t, game, models.PlaceMove("t", 0, tile(6, 6), models.SideLeft))

	h := newRoundHarness(t, game, PolicyRoundRobin, SchedulerConfig{
		TerminationGrace: 20 * time.Millisecond,
		IdlePoll:         time.Millisecond,
	})

	done := make(chan error, 1)
	go func() { done <- h.scheduler.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not force-terminate idle seats")
	}
	for _, d := range h.seats {
		if !d.IsTerminated() {
			t.Errorf("Expected seat %d terminated", d.Seat())
		}
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	game := mustGame(t, [][]models.Tile{{tile(6, 6), tile(0, 0)}, {tile(1, 2)}}, nil, 0)
	h := newRoundHarness(t, game, PolicyRoundRobin, SchedulerConfig{Quantum: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.scheduler.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler ignored cancellation")
	}
	if h.scheduler.Quanta() == 0 {
		t.Error("Expected the turn seat to have been granted quanta")
	}
}
