package sink

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/rtheil/hrvstream/internal/config"
	"github.com/rtheil/hrvstream/internal/event"
)

// RedisStream XADDs each record to a capped Redis stream so consumers other
// than the graph server (alerting, session analytics) can tail the scores.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStream connects and pings the configured Redis instance.
func NewRedisStream(ctx context.Context, cfg config.RedisConf) (*RedisStream, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &RedisStream{client: client, stream: cfg.Stream, maxLen: cfg.MaxLen}, nil
}

// Write implements Sink. Nil fields are published as empty strings so stream
// consumers can tell "no data yet" from zero.
func (s *RedisStream) Write(ctx context.Context, rec *event.ScoreRecord) error {
	values := map[string]interface{}{
		"ts":        fmt.Sprintf("%f", rec.TS),
		"hr":        "",
		"rmssd_ms":  "",
		"hrv_score": "",
	}
	if rec.HR != nil {
		values["hr"] = fmt.Sprintf("%d", *rec.HR)
	}
	if rec.RMSSD != nil {
		values["rmssd_ms"] = fmt.Sprintf("%f", *rec.RMSSD)
	}
	if rec.Score != nil {
		values["hrv_score"] = fmt.Sprintf("%d", *rec.Score)
	}
	if rec.Dropped != nil {
		values["rr_dropped"] = fmt.Sprintf("%d", *rec.Dropped)
	}
	if rec.Interpolated != nil {
		values["rr_interpolated"] = fmt.Sprintf("%d", *rec.Interpolated)
	}

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to %s: %w", s.stream, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStream) Close() error {
	return s.client.Close()
}
