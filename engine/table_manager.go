package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"domino-engine/models"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
)

// queueSlotsPerSeat is how many in-flight moves a seat may need at once.
const queueSlotsPerSeat = 4

// TableManager is one session: a shared move queue and the tables using it.
type TableManager struct {
	sessionID    string
	queue        *MoveQueue
	tables       map[string]*Table
	seatCount    int
	mu           sync.RWMutex
	eventChannel chan models.Event
	closed       bool
	logger       *zap.Logger
}

func NewTableManager(queueCapacity int, logger *zap.Logger) *TableManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionID := uuid.New().String()
	return &TableManager{
		sessionID:    sessionID,
		queue:        NewMoveQueue(queueCapacity),
		tables:       make(map[string]*Table),
		eventChannel: make(chan models.Event, 100),
		logger:       logger.With(zap.String("session_id", sessionID)),
	}
}

func (tm *TableManager) SessionID() string {
	return tm.sessionID
}

func (tm *TableManager) Queue() *MoveQueue {
	return tm.queue
}

// CreateTable deals a new table. A nil deck means a freshly shuffled one.
func (tm *TableManager) CreateTable(tableID string, config models.TableConfig, deck *models.Deck, decider Decider) (*Table, error) {
	if config.Seats < models.MinSeats || config.Seats > models.MaxSeats {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeatCount, config.Seats)
	}
	if tableID == "" {
		tableID = uuid.New().String()
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	if _, exists := tm.tables[tableID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, tableID)
	}
	if need := (tm.seatCount + config.Seats) * queueSlotsPerSeat; need > tm.queue.Capacity() {
		return nil, fmt.Errorf("%w: %d tables need %d slots, queue holds %d",
			ErrQueueCapacity, len(tm.tables)+1, need, tm.queue.Capacity())
	}

	table, err := NewTable(tableID, config, tm.queue, deck, decider, tm.logger, tm.emit)
	if err != nil {
		return nil, err
	}
	tm.tables[tableID] = table
	tm.seatCount += config.Seats
	return table, nil
}

// DestroyTable removes the table and cancels it. It does not wait for the
// table's workers: the caller may be one of them, such as the human seat's
// console. Use the table's Done channel to wait.
func (tm *TableManager) DestroyTable(tableID string) error {
	tm.mu.Lock()
	table, exists := tm.tables[tableID]
	if !exists {
		tm.mu.Unlock()
		return ErrTableNotFound
	}
	delete(tm.tables, tableID)
	tm.seatCount -= table.cfg.Seats
	tm.mu.Unlock()

	if !table.Cancel() {
		tm.queue.Drop(tableID)
		return nil
	}
	go func() {
		<-table.Done()
		tm.queue.Drop(tableID)
	}()
	tm.logger.Info("table destroyed", zap.String("table_id", tableID))
	return nil
}

func (tm *TableManager) GetTable(tableID string) (*Table, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	table, exists := tm.tables[tableID]
	if !exists {
		return nil, ErrTableNotFound
	}
	return table, nil
}

func (tm *TableManager) ListTables() []string {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	tableIDs := make([]string, 0, len(tm.tables))
	for id := range tm.tables {
		tableIDs = append(tableIDs, id)
	}
	sort.Strings(tableIDs)
	return tableIDs
}

func (tm *TableManager) TrySnapshot(tableID string) (models.TableSnapshot, bool) {
	table, err := tm.GetTable(tableID)
	if err != nil {
		return models.TableSnapshot{}, false
	}
	return table.TrySnapshot()
}

func (tm *TableManager) TryRoundRecord(tableID string) (models.RoundRecord, bool) {
	table, err := tm.GetTable(tableID)
	if err != nil {
		return models.RoundRecord{}, false
	}
	return table.TryRoundRecord()
}

// StartAll starts every table that has not been started yet.
func (tm *TableManager) StartAll(ctx context.Context) error {
	for _, table := range tm.snapshotTables() {
		if err := table.Start(ctx); err != nil && !errors.Is(err, ErrTableStarted) {
			return fmt.Errorf("failed to start table %s: %w", table.ID(), err)
		}
	}
	tm.logger.Info("session started", zap.Int("tables", len(tm.ListTables())))
	return nil
}

// Wait blocks until every started table has stopped.
func (tm *TableManager) Wait() error {
	var errs []error
	for _, table := range tm.snapshotTables() {
		table.mu.Lock()
		started := table.started
		table.mu.Unlock()
		if !started {
			continue
		}
		if err := table.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", table.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown stops all tables, closes the queue and then the event channel.
func (tm *TableManager) Shutdown() error {
	var errs []error
	for _, table := range tm.snapshotTables() {
		if err := table.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("table %s: %w", table.ID(), err))
		}
	}
	tm.queue.Close()

	tm.mu.Lock()
	if !tm.closed {
		tm.closed = true
		close(tm.eventChannel)
	}
	tm.mu.Unlock()

	tm.logger.Info("session stopped")
	return errors.Join(errs...)
}

func (tm *TableManager) Events() <-chan models.Event {
	return tm.eventChannel
}

// emit never blocks a table; events are dropped when nobody keeps up.
func (tm *TableManager) emit(event models.Event) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if tm.closed {
		return
	}
	select {
	case tm.eventChannel <- event:
	default:
		tm.logger.Debug("event dropped", zap.String("event", event.Event), zap.String("table_id", event.TableID))
	}
}

func (tm *TableManager) snapshotTables() []*Table {
	ids := tm.ListTables()
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	tables := make([]*Table, 0, len(ids))
	for _, id := range ids {
		if table, ok := tm.tables[id]; ok {
			tables = append(tables, table)
		}
	}
	return tables
}
