// Package pubsub relays change events between server instances over Redis.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lexpost/config"
	"lexpost/internal/domain"
)

// Deliverer receives events for local fan-out, usually a *ws.Hub.
type Deliverer interface {
	Deliver(ev domain.ChangeEvent)
}

// RedisBridge publishes change events to a channel and feeds every event seen on
// that channel, including this instance's own, into the local hub.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   Deliverer
	log     *slog.Logger
}

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisBridge(client *redis.Client, channel string, local Deliverer, log *slog.Logger) *RedisBridge {
	return &RedisBridge{client: client, channel: channel, local: local, log: log}
}

// Publish sends ev to every instance. If Redis is unreachable the event is still
// delivered to this instance's clients.
func (b *RedisBridge) Publish(ctx context.Context, ev domain.ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Error("failed to encode change event", "type", ev.Type, "error", err)
		return
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.log.Warn("failed to publish change event, delivering locally",
			"type", ev.Type,
			"entity_id", ev.EntityID,
			"error", err,
		)
		b.local.Deliver(ev)
	}
}

// Run subscribes until ctx is cancelled, reconnecting with exponential backoff.
func (b *RedisBridge) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		err := b.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.log.Warn("event subscription disconnected, reconnecting",
			"channel", b.channel,
			"error", err,
			"backoff", backoff,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (b *RedisBridge) subscribe(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", b.channel, err)
	}
	b.log.Info("subscribed to event channel", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("failed to decode change event", "error", err)
				continue
			}
			b.local.Deliver(ev)
		}
	}
}
