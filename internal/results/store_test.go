package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"domino-engine/models"
)

func setupTestStore(t *testing.T, sessionID string) *Store {
	// Use in-memory SQLite for tests
	db := openMemoryDB(t)

	store, err := New(db, sessionID, nil)
	require.NoError(t, err)
	return store
}

// openMemoryDB pins a single connection so every query sees the same
// in-memory database.
func openMemoryDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func sampleRound(tableID string, finishedAt time.Time) models.RoundRecord {
	return models.RoundRecord{
		TableID:   tableID,
		Winner:    1,
		Blocked:   false,
		PipTotals: []int{12, 0},
		History: []models.Move{
			{ID: "m1", SeatID: 0, TableID: tableID, Kind: models.MovePlace, Tile: models.Tile{A: 6, B: 6}, Side: models.SideLeft},
			{ID: "m2", SeatID: 1, TableID: tableID, Kind: models.MovePlace, Tile: models.Tile{A: 6, B: 2}, Side: models.SideRight},
			{ID: "m3", SeatID: 0, TableID: tableID, Kind: models.MovePass, Tile: models.NoTile, Side: models.SideNone},
		},
		FinishedAt: finishedAt,
	}
}

func TestRecordRound(t *testing.T) {
	store := setupTestStore(t, "session-1")
	ctx := context.Background()

	roundID, err := store.RecordRound(ctx, sampleRound("table-a", time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, roundID)
	assert.True(t, store.IsRecorded("table-a"))

	round, err := store.Round(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, "table-a", round.TableID)
	assert.Equal(t, 1, round.Winner)
	assert.Equal(t, "[12,0]", round.PipTotals)
	assert.Equal(t, 3, round.MoveCount)
	require.Len(t, round.Moves, 3)

	for i, mv := range round.Moves {
		assert.Equal(t, i, mv.SequenceNumber)
	}
	assert.Equal(t, "[6|6]", round.Moves[0].Tile)
	assert.Equal(t, "pass", round.Moves[2].Kind)
}

func TestRecordRound_OncePerTable(t *testing.T) {
	store := setupTestStore(t, "session-1")
	ctx := context.Background()

	first, err := store.RecordRound(ctx, sampleRound("table-a", time.Now()))
	require.NoError(t, err)

	second, err := store.RecordRound(ctx, sampleRound("table-a", time.Now()))
	assert.ErrorIs(t, err, ErrAlreadyRecorded)
	assert.Equal(t, first, second)

	rounds, err := store.RecentRounds(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}

func TestRecentRounds_NewestFirst(t *testing.T) {
	store := setupTestStore(t, "session-1")
	ctx := context.Background()
	base := time.Now()

	_, err := store.RecordRound(ctx, sampleRound("table-a", base))
	require.NoError(t, err)
	_, err = store.RecordRound(ctx, sampleRound("table-b", base.Add(time.Second)))
	require.NoError(t, err)
	_, err = store.RecordRound(ctx, sampleRound("table-c", base.Add(2*time.Second)))
	require.NoError(t, err)

	rounds, err := store.RecentRounds(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, "table-c", rounds[0].TableID)
	assert.Equal(t, "table-b", rounds[1].TableID)
}

func TestRecentRounds_ScopedToSession(t *testing.T) {
	db := openMemoryDB(t)

	mine, err := New(db, "mine", nil)
	require.NoError(t, err)
	theirs, err := New(db, "theirs", nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = mine.RecordRound(ctx, sampleRound("table-a", time.Now()))
	require.NoError(t, err)
	_, err = theirs.RecordRound(ctx, sampleRound("table-a", time.Now()))
	require.NoError(t, err)

	rounds, err := mine.RecentRounds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, "mine", rounds[0].SessionID)
}
