package engine

import (
	"sync"
	"time"

	"domino-engine/models"
)

// ProcessedMove remembers a move the validator already applied.
type ProcessedMove struct {
	MoveID    string
	SeatID    int
	TableID   string
	Kind      models.MoveKind
	Timestamp time.Time
}

// MoveLedger tracks applied move IDs so a resubmitted move is a no-op.
type MoveLedger struct {
	mu             sync.RWMutex
	processedMoves map[string]ProcessedMove
}

func NewMoveLedger() *MoveLedger {
	return &MoveLedger{processedMoves: make(map[string]ProcessedMove)}
}

// IsDuplicate reports whether a move with this ID was already applied. Moves
// without an ID are never duplicates.
func (l *MoveLedger) IsDuplicate(moveID string) bool {
	if moveID == "" {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.processedMoves[moveID]
	return exists
}

func (l *MoveLedger) MarkProcessed(mv models.Move) {
	if mv.ID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processedMoves[mv.ID] = ProcessedMove{
		MoveID:    mv.ID,
		SeatID:    mv.SeatID,
		TableID:   mv.TableID,
		Kind:      mv.Kind,
		Timestamp: time.Now(),
	}
}

func (l *MoveLedger) ProcessedCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.processedMoves)
}
