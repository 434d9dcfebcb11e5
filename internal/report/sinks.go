package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"domino-engine/models"
)

// LogSink writes a one-line summary per snapshot.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("snapshot")}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Publish(_ context.Context, snap models.TableSnapshot) error {
	fields := []zap.Field{
		zap.String("table_id", snap.TableID),
		zap.String("status", string(snap.Status)),
		zap.Int("train", len(snap.Train)),
		zap.Int("left_end", snap.LeftEnd),
		zap.Int("right_end", snap.RightEnd),
		zap.Int("pool", snap.PoolSize),
		zap.Ints("hands", snap.HandSizes),
		zap.Uint64("version", snap.Version),
	}
	if snap.Turn != nil {
		fields = append(fields, zap.Int("turn", *snap.Turn))
	}
	if snap.Winner != nil {
		fields = append(fields, zap.Int("winner", *snap.Winner), zap.Bool("blocked", snap.Blocked))
	}
	s.logger.Info("table snapshot", fields...)
	return nil
}

// Publisher is the part of a redis client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisSink publishes each snapshot on domino:tables:<id> and keeps the latest
// one under the same key.
type RedisSink struct {
	client Publisher
	ttl    time.Duration
}

func NewRedisSink(client Publisher, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, ttl: ttl}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func ChannelFor(tableID string) string {
	return "domino:tables:" + tableID
}

func (s *RedisSink) Publish(ctx context.Context, snap models.TableSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	key := ChannelFor(snap.TableID)
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	if err := s.client.Publish(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}
