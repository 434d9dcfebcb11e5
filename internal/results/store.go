package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"domino-engine/models"
)

var ErrAlreadyRecorded = errors.New("round already recorded")

// Store keeps the results of the current session. The default DSN is an
// in-memory database, so nothing outlives the process.
type Store struct {
	db        *gorm.DB
	sessionID string
	logger    *zap.Logger

	mu       sync.Mutex
	recorded map[string]string // table id -> round id
}

// Open connects to dsn and migrates the schema.
func Open(dsn, sessionID string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// sqlite serializes writers anyway
	sqlDB.SetMaxOpenConns(1)

	return New(db, sessionID, log)
}

// New uses an existing connection.
func New(db *gorm.DB, sessionID string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&RoundResult{}, &MoveRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate results schema: %w", err)
	}
	return &Store{
		db:        db,
		sessionID: sessionID,
		logger:    log.Named("results"),
		recorded:  make(map[string]string),
	}, nil
}

// RecordRound stores a finished round and its move history in one
// transaction. A table's round is recorded once.
func (s *Store) RecordRound(ctx context.Context, rec models.RoundRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if roundID, ok := s.recorded[rec.TableID]; ok {
		return roundID, ErrAlreadyRecorded
	}

	pipTotals, err := json.Marshal(rec.PipTotals)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pip totals: %w", err)
	}

	round := RoundResult{
		ID:         uuid.New().String(),
		SessionID:  s.sessionID,
		TableID:    rec.TableID,
		Winner:     rec.Winner,
		Blocked:    rec.Blocked,
		PipTotals:  string(pipTotals),
		MoveCount:  len(rec.History),
		FinishedAt: rec.FinishedAt,
	}
	for seq, mv := range rec.History {
		round.Moves = append(round.Moves, MoveRecord{
			RoundID:        round.ID,
			MoveID:         mv.ID,
			SequenceNumber: seq,
			SeatID:         mv.SeatID,
			Kind:           string(mv.Kind),
			Tile:           mv.Tile.String(),
			Side:           string(mv.Side),
			SubmittedAt:    mv.SubmittedAt,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&round).Error
	})
	if err != nil {
		s.logger.Error("failed to record round", zap.String("table_id", rec.TableID), zap.Error(err))
		return "", fmt.Errorf("failed to record round for table %s: %w", rec.TableID, err)
	}

	s.recorded[rec.TableID] = round.ID
	s.logger.Info("recorded round",
		zap.String("round_id", round.ID),
		zap.String("table_id", rec.TableID),
		zap.Int("winner", rec.Winner),
		zap.Int("moves", round.MoveCount))
	return round.ID, nil
}

func (s *Store) IsRecorded(tableID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recorded[tableID]
	return ok
}

// RecentRounds returns the newest rounds of this session first.
func (s *Store) RecentRounds(ctx context.Context, limit int) ([]RoundResult, error) {
	if limit <= 0 {
		limit = 50
	}
	var rounds []RoundResult
	err := s.db.WithContext(ctx).
		Where("session_id = ?", s.sessionID).
		Order("finished_at DESC").
		Limit(limit).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	return rounds, nil
}

// Round loads one round with its moves in sequence order.
func (s *Store) Round(ctx context.Context, roundID string) (*RoundResult, error) {
	var round RoundResult
	err := s.db.WithContext(ctx).
		Preload("Moves", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence_number ASC")
		}).
		Where("id = ?", roundID).
		First(&round).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load round %s: %w", roundID, err)
	}
	return &round, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
