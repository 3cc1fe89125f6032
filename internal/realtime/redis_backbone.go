package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisBackbone publishes envelopes on one Redis Pub/Sub channel.
type RedisBackbone struct {
	client  *redis.Client
	channel string
	log     *logger.Logger
}

func NewRedisBackbone(client *redis.Client, channel string, log *logger.Logger) *RedisBackbone {
	return &RedisBackbone{
		client:  client,
		channel: channel,
		log:     log.Component("backbone.redis"),
	}
}

func (r *RedisBackbone) Publish(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

func (r *RedisBackbone) Subscribe(ctx context.Context, fn func(Envelope)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed so nothing published after
	// Subscribe returns control is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Infow("subscribed", "channel", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warnw("dropping malformed envelope", "error", err)
				continue
			}
			fn(env)
		}
	}
}

// Close is a no-op; the redis client is owned by the caller.
func (r *RedisBackbone) Close() error { return nil }
