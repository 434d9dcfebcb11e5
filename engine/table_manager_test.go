package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"domino-engine/models"
)

func TestTableManager_CreateAndDestroy(t *testing.T) {
	tm := NewTableManager(64, nil)
	if tm.SessionID() == "" {
		t.Fatal("Expected a session ID")
	}

	if _, err := tm.CreateTable("b", testTableConfig(2), nil, nil); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := tm.CreateTable("a", testTableConfig(3), nil, nil); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := tm.CreateTable("a", testTableConfig(2), nil, nil); !errors.Is(err, ErrTableExists) {
		t.Errorf("Expected ErrTableExists, got %v", err)
	}
	generated, err := tm.CreateTable("", testTableConfig(2), nil, nil)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if generated.ID() == "" {
		t.Error("Expected a generated table ID")
	}

	ids := tm.ListTables()
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected sorted table IDs, got %v", ids)
	}
	if _, err := tm.GetTable("zzz"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Expected ErrTableNotFound, got %v", err)
	}
	if snap, ok := tm.TrySnapshot("a"); !ok || snap.Status != models.StatusWaiting {
		t.Errorf("Expected a waiting snapshot, got %v %s", ok, snap.Status)
	}
	if _, ok := tm.TryRoundRecord("a"); ok {
		t.Error("Expected no round record before the round is played")
	}

	if err := tm.DestroyTable("b"); err != nil {
		t.Fatalf("DestroyTable failed: %v", err)
	}
	if err := tm.DestroyTable("b"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Expected ErrTableNotFound, got %v", err)
	}
	if len(tm.ListTables()) != 2 {
		t.Errorf("Expected 2 tables left, got %d", len(tm.ListTables()))
	}
}

func TestTableManager_QueueCapacityFault(t *testing.T) {
	// Eight slots cover two seats.
	tm := NewTableManager(8, nil)

	if _, err := tm.CreateTable("a", testTableConfig(2), nil, nil); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if _, err := tm.CreateTable("b", testTableConfig(2), nil, nil); !errors.Is(err, ErrQueueCapacity) {
		t.Fatalf("Expected ErrQueueCapacity, got %v", err)
	}

	// Destroying a table frees its seats.
	if err := tm.DestroyTable("a"); err != nil {
		t.Fatalf("DestroyTable failed: %v", err)
	}
	if _, err := tm.CreateTable("b", testTableConfig(2), nil, nil); err != nil {
		t.Errorf("Expected room after destroy, got %v", err)
	}
}

func TestTableManager_InvalidSeatCount(t *testing.T) {
	tm := NewTableManager(64, nil)
	if _, err := tm.CreateTable("a", testTableConfig(1), nil, nil); !errors.Is(err, ErrInvalidSeatCount) {
		t.Errorf("Expected ErrInvalidSeatCount, got %v", err)
	}
}

func TestTableManager_RunsSession(t *testing.T) {
	tm := NewTableManager(256, nil)
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		if _, err := tm.CreateTable(id, testTableConfig(4), models.NewSeededDeck(int64(i)), nil); err != nil {
			t.Fatalf("CreateTable failed: %v", err)
		}
	}

	if err := tm.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := tm.StartAll(context.Background()); err != nil {
		t.Errorf("Expected a second StartAll to skip started tables, got %v", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- tm.Wait() }()
	select {
	case err := <-waited:
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("session did not finish")
	}

	finished := 0
	stopped := 0
	for _, id := range tm.ListTables() {
		table, _ := tm.GetTable(id)
		if table.Status() != models.StatusCompleted {
			t.Errorf("Expected table %s completed, got %s", id, table.Status())
		}
		if _, ok := tm.TryRoundRecord(id); !ok {
			t.Errorf("Expected a round record for table %s", id)
		}
	}

	if err := tm.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	for event := range tm.Events() {
		switch event.Event {
		case models.EventRoundFinished:
			finished++
		case models.EventTableStopped:
			stopped++
		}
	}
	if finished != 3 || stopped != 3 {
		t.Errorf("Expected 3 roundFinished and 3 tableStopped events, got %d and %d", finished, stopped)
	}
	if _, err := tm.Queue().Submit(models.PassMove("a", 0)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected the queue closed after shutdown, got %v", err)
	}
}

func TestTableManager_ShutdownStopsRunningTables(t *testing.T) {
	tm := NewTableManager(64, nil)
	cfg := testTableConfig(2)
	cfg.HumanSeat = 0
	if _, err := tm.CreateTable("a", cfg, nil, blockingDecider{}); err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := tm.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if err := tm.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	table, _ := tm.GetTable("a")
	if status := table.Status(); status != models.StatusStopped && status != models.StatusCompleted {
		t.Errorf("Expected the table to be stopped, got %s", status)
	}
	if err := tm.Shutdown(); err != nil {
		t.Errorf("Expected a second Shutdown to be harmless, got %v", err)
	}
}

// destroyingDecider removes its own table from inside Decide, the way a human
// console does on table.destroy.
type destroyingDecider struct {
	tm      *TableManager
	tableID string
	once    sync.Once
	errs    chan error
}

func (d *destroyingDecider) Decide(ctx context.Context, view models.SeatView) (models.Decision, error) {
	d.once.Do(func() { d.errs <- d.tm.DestroyTable(d.tableID) })
	<-ctx.Done()
	return models.Decision{}, ctx.Err()
}

func (d *destroyingDecider) Reject(models.SeatView, error) {}

func TestTableManager_DestroyFromOwnSeat(t *testing.T) {
	tm := NewTableManager(64, nil)
	decider := &destroyingDecider{tm: tm, tableID: "t1", errs: make(chan error, 1)}

	cfg := testTableConfig(2)
	cfg.HumanSeat = 0
	table, err := tm.CreateTable("t1", cfg, models.NewSeededDeck(11), decider)
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if err := tm.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}

	select {
	case err := <-decider.errs:
		if err != nil {
			t.Fatalf("DestroyTable failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("human seat was never asked to decide")
	}
	waitTable(t, table, 5*time.Second)

	if table.Status() != models.StatusStopped {
		t.Errorf("Expected stopped, got %s", table.Status())
	}
	if ids := tm.ListTables(); len(ids) != 0 {
		t.Errorf("Expected no tables left, got %v", ids)
	}
	if err := tm.Shutdown(); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
