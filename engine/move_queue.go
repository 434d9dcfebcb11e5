package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"domino-engine/models"
)

var (
	// ErrQueueCapacity is a capacity fault: the session is misconfigured.
	ErrQueueCapacity = errors.New("move queue capacity exceeded")
	ErrQueueClosed   = errors.New("move queue closed")
)

const DefaultQueueCapacity = 256

// MoveQueue carries proposed moves from seats to their table's validator. It is
// shared by every table; each table drains only its own FIFO.
type MoveQueue struct {
	mu       sync.Mutex
	capacity int
	size     int
	seq      uint64
	pending  map[string][]models.Move
	signals  map[string]chan struct{}
	closed   bool
	done     chan struct{}
}

func NewMoveQueue(capacity int) *MoveQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &MoveQueue{
		capacity: capacity,
		pending:  make(map[string][]models.Move),
		signals:  make(map[string]chan struct{}),
		done:     make(chan struct{}),
	}
}

func (q *MoveQueue) Capacity() int {
	return q.capacity
}

// Submit enqueues a move and wakes its table's validator. It never blocks.
// The stored move, stamped with ID and sequence number, is returned.
func (q *MoveQueue) Submit(mv models.Move) (models.Move, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return mv, ErrQueueClosed
	}
	if q.size >= q.capacity {
		return mv, fmt.Errorf("%w: %d moves pending (table %s, seat %d)", ErrQueueCapacity, q.size, mv.TableID, mv.SeatID)
	}

	if mv.ID == "" {
		mv.ID = uuid.New().String()
	}
	q.seq++
	mv.Seq = q.seq
	if mv.SubmittedAt.IsZero() {
		mv.SubmittedAt = time.Now()
	}

	q.pending[mv.TableID] = append(q.pending[mv.TableID], mv)
	q.size++

	select {
	case q.signalLocked(mv.TableID) <- struct{}{}:
	default:
	}
	return mv, nil
}

// TakeFor blocks until a move addressed to tableID is queued and removes the
// oldest one. Other tables' moves stay where they are.
func (q *MoveQueue) TakeFor(ctx context.Context, tableID string) (models.Move, error) {
	for {
		q.mu.Lock()
		if moves := q.pending[tableID]; len(moves) > 0 {
			mv := moves[0]
			if len(moves) == 1 {
				delete(q.pending, tableID)
			} else {
				q.pending[tableID] = moves[1:]
			}
			q.size--
			q.mu.Unlock()
			return mv, nil
		}
		if q.closed {
			q.mu.Unlock()
			return models.Move{}, ErrQueueClosed
		}
		signal := q.signalLocked(tableID)
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.Move{}, ctx.Err()
		case <-q.done:
		case <-signal:
		}
	}
}

func (q *MoveQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *MoveQueue) LenFor(tableID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[tableID])
}

// Drop discards whatever is still queued for a table that stopped consuming.
func (q *MoveQueue) Drop(tableID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.pending[tableID])
	q.size -= dropped
	delete(q.pending, tableID)
	delete(q.signals, tableID)
	return dropped
}

// Close wakes every waiter; queued moves can still be taken.
func (q *MoveQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *MoveQueue) signalLocked(tableID string) chan struct{} {
	signal, ok := q.signals[tableID]
	if !ok {
		signal = make(chan struct{}, 1)
		q.signals[tableID] = signal
	}
	return signal
}
