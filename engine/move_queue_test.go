package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"domino-engine/models"
)

func TestMoveQueue_PerTableFIFO(t *testing.T) {
	q := NewMoveQueue(16)

	for i := 0; i < 3; i++ {
		if _, err := q.Submit(models.PassMove("a", i)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if _, err := q.Submit(models.PassMove("b", i)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if q.Len() != 6 || q.LenFor("a") != 3 {
		t.Fatalf("Expected 6 queued (3 for a), got %d (%d)", q.Len(), q.LenFor("a"))
	}

	ctx := context.Background()
	var lastSeq uint64
	for i := 0; i < 3; i++ {
		mv, err := q.TakeFor(ctx, "a")
		if err != nil {
			t.Fatalf("TakeFor failed: %v", err)
		}
		if mv.TableID != "a" || mv.SeatID != i {
			t.Errorf("Expected table a seat %d, got table %s seat %d", i, mv.TableID, mv.SeatID)
		}
		if mv.ID == "" || mv.SubmittedAt.IsZero() {
			t.Error("Expected the queue to stamp ID and submission time")
		}
		if mv.Seq <= lastSeq {
			t.Errorf("Expected increasing sequence numbers, got %d after %d", mv.Seq, lastSeq)
		}
		lastSeq = mv.Seq
	}
	if q.LenFor("b") != 3 {
		t.Errorf("Expected table b untouched, got %d", q.LenFor("b"))
	}
}

func TestMoveQueue_CapacityFault(t *testing.T) {
	q := NewMoveQueue(2)
	q.Submit(models.PassMove("a", 0))
	q.Submit(models.PassMove("a", 1))

	_, err := q.Submit(models.PassMove("a", 0))
	if !errors.Is(err, ErrQueueCapacity) {
		t.Fatalf("Expected ErrQueueCapacity, got %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("Expected the rejected move not to be stored, got %d", q.Len())
	}
}

func TestMoveQueue_TakeForBlocksUntilSubmit(t *testing.T) {
	q := NewMoveQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan models.Move, 1)
	go func() {
		mv, err := q.TakeFor(ctx, "a")
		if err == nil {
			got <- mv
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Submit(models.PassMove("b", 1))
	q.Submit(models.DrawMove("a", 0))

	select {
	case mv := <-got:
		if mv.TableID != "a" || mv.Kind != models.MoveDraw {
			t.Errorf("Expected the draw for table a, got %+v", mv)
		}
	case <-time.After(time.Second):
		t.Fatal("TakeFor did not wake up")
	}
}

func TestMoveQueue_TakeForHonorsContext(t *testing.T) {
	q := NewMoveQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.TakeFor(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestMoveQueue_CloseWakesWaiters(t *testing.T) {
	q := NewMoveQueue(4)
	q.Submit(models.PassMove("a", 0))
	q.Close()

	if _, err := q.Submit(models.PassMove("a", 1)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on submit, got %v", err)
	}
	if _, err := q.TakeFor(context.Background(), "a"); err != nil {
		t.Errorf("Expected queued moves to survive Close, got %v", err)
	}
	if _, err := q.TakeFor(context.Background(), "a"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed once drained, got %v", err)
	}
	q.Close()
}

func TestMoveQueue_Drop(t *testing.T) {
	q := NewMoveQueue(8)
	q.Submit(models.PassMove("a", 0))
	q.Submit(models.PassMove("a", 1))
	q.Submit(models.PassMove("b", 0))

	if dropped := q.Drop("a"); dropped != 2 {
		t.Errorf("Expected 2 dropped, got %d", dropped)
	}
	if q.Len() != 1 {
		t.Errorf("Expected 1 move left, got %d", q.Len())
	}
}

func TestMoveQueue_ConcurrentSubmitters(t *testing.T) {
	q := NewMoveQueue(1000)
	var wg sync.WaitGroup
	for seat := 0; seat < 4; seat++ {
		wg.Add(1)
		go func(seat int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := q.Submit(models.PassMove("a", seat)); err != nil {
					t.Errorf("Submit failed: %v", err)
					return
				}
			}
		}(seat)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var lastSeq uint64
	for i := 0; i < 400; i++ {
		mv, err := q.TakeFor(context.Background(), "a")
		if err != nil {
			t.Fatalf("TakeFor failed: %v", err)
		}
		if seen[mv.ID] {
			t.Fatalf("Duplicate move ID %s", mv.ID)
		}
		seen[mv.ID] = true
		if mv.Seq <= lastSeq {
			t.Fatalf("Expected FIFO by sequence, got %d after %d", mv.Seq, lastSeq)
		}
		lastSeq = mv.Seq
	}
}
