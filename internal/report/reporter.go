package report

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"domino-engine/internal/results"
	"domino-engine/models"
)

// Source is where the reporter reads tables from. Reads must not wait for a
// table's lock.
type Source interface {
	ListTables() []string
	TrySnapshot(tableID string) (models.TableSnapshot, bool)
	TryRoundRecord(tableID string) (models.RoundRecord, bool)
}

// Sink receives every fresh snapshot.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap models.TableSnapshot) error
}

// Recorder stores a finished round.
type Recorder interface {
	RecordRound(ctx context.Context, rec models.RoundRecord) (string, error)
}

// Reporter periodically samples every table and fans the snapshots out. A
// table whose lock is held is skipped until the next tick.
type Reporter struct {
	source   Source
	recorder Recorder
	sinks    []Sink
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	latest   map[string]models.TableSnapshot
	recorded map[string]bool
	skipped  int
}

func NewReporter(source Source, recorder Recorder, interval time.Duration, logger *zap.Logger, sinks ...Sink) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Reporter{
		source:   source,
		recorder: recorder,
		sinks:    sinks,
		interval: interval,
		logger:   logger.Named("reporter"),
		latest:   make(map[string]models.TableSnapshot),
		recorded: make(map[string]bool),
	}
}

// Run collects on every tick until ctx ends, then collects once more so
// rounds that finished late still get recorded.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), r.interval)
			r.Collect(final)
			cancel()
			return nil
		case <-ticker.C:
			r.Collect(ctx)
		}
	}
}

// Collect samples every table once and returns how many snapshots it took.
func (r *Reporter) Collect(ctx context.Context) int {
	taken := 0
	for _, tableID := range r.source.ListTables() {
		snap, ok := r.source.TrySnapshot(tableID)
		if !ok {
			r.mu.Lock()
			r.skipped++
			r.mu.Unlock()
			r.logger.Debug("table busy, skipping this cycle", zap.String("table_id", tableID))
			continue
		}
		taken++

		if r.store(snap) {
			r.publish(ctx, snap)
		}
		if snap.Finished {
			r.record(ctx, tableID)
		}
	}
	return taken
}

// store keeps snap and reports whether it is new.
func (r *Reporter) store(snap models.TableSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.latest[snap.TableID]
	r.latest[snap.TableID] = snap
	return !seen || prev.Version != snap.Version || prev.Status != snap.Status
}

func (r *Reporter) publish(ctx context.Context, snap models.TableSnapshot) {
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			r.logger.Warn("sink failed",
				zap.String("sink", sink.Name()),
				zap.String("table_id", snap.TableID),
				zap.Error(err))
		}
	}
}

func (r *Reporter) record(ctx context.Context, tableID string) {
	if r.recorder == nil {
		return
	}
	r.mu.RLock()
	done := r.recorded[tableID]
	r.mu.RUnlock()
	if done {
		return
	}

	rec, ok := r.source.TryRoundRecord(tableID)
	if !ok {
		return
	}
	if _, err := r.recorder.RecordRound(ctx, rec); err != nil && !errors.Is(err, results.ErrAlreadyRecorded) {
		r.logger.Warn("failed to record round", zap.String("table_id", tableID), zap.Error(err))
		return
	}

	r.mu.Lock()
	r.recorded[tableID] = true
	r.mu.Unlock()
}

// Latest returns the newest snapshot of every table, ordered by table id.
func (r *Reporter) Latest() []models.TableSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snaps := make([]models.TableSnapshot, 0, len(r.latest))
	for _, snap := range r.latest {
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].TableID < snaps[j].TableID })
	return snaps
}

func (r *Reporter) LatestFor(tableID string) (models.TableSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.latest[tableID]
	return snap, ok
}

// Skipped counts samples dropped because a table was busy.
func (r *Reporter) Skipped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skipped
}
