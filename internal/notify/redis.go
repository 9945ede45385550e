// Package notify forwards SIGNAL alerts to external subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"arbradar/internal/model"
)

// DefaultChannel is the pub/sub channel signals are published to.
const DefaultChannel = "arbradar:signals"

const publishTimeout = 2 * time.Second

// RedisPublisher publishes SIGNAL events as JSON on a Redis pub/sub channel.
// Other levels are ignored.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher connects to addr and verifies the connection with PING.
func NewRedisPublisher(ctx context.Context, addr, password string, db int, channel string, logger *slog.Logger) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger.With("component", "redis_publisher")}, nil
}

func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) Emit(event model.Event) {
	if event.Level != model.LevelSignal {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Error("Failed to publish signal", "event_id", event.ID, "error", err)
	}
}

// Publish sends one event regardless of level.
func (p *RedisPublisher) Publish(ctx context.Context, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
