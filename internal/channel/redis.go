package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

const DefaultPushQueueKey = "alerts:push"

// RedisPushSink enqueues push notifications on a list consumed by an external
// push relay worker.
type RedisPushSink struct {
	client redis.Cmdable
	key    string
}

func NewRedisPushSink(client redis.Cmdable, key string) *RedisPushSink {
	if key == "" {
		key = DefaultPushQueueKey
	}
	return &RedisPushSink{client: client, key: key}
}

func (s *RedisPushSink) Send(ctx context.Context, n models.ChannelNotification) error {
	b, err := json.Marshal(NewPushPayload(n))
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, b).Err(); err != nil {
		return fmt.Errorf("enqueue push: %w", err)
	}
	return nil
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings; the client is closed again if the ping fails.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to ping redis", "addr", cfg.Addr, "error", err)
		if cerr := rdb.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	slog.Info("connected to redis", "addr", cfg.Addr)

	return rdb, nil
}
