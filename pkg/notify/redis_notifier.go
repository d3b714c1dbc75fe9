package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "changes:"

// RedisNotifier publishes and subscribes change signals over Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier builds a notifier on an existing Redis client.
func NewRedisNotifier(client *redis.Client) (*RedisNotifier, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisNotifier{client: client}, nil
}

// Publish emits one signal for the entity kind.
func (n *RedisNotifier) Publish(ctx context.Context, kind string) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return errors.New("entity kind required")
	}
	return n.client.Publish(ctx, channelPrefix+kind, "1").Err()
}

// Subscribe forwards signals for the entity kind until ctx is done. Bursts
// are coalesced into a single pending signal, which is enough to trigger a
// re-read.
func (n *RedisNotifier) Subscribe(ctx context.Context, kind string) (<-chan struct{}, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, errors.New("entity kind required")
	}
	sub := n.client.Subscribe(ctx, channelPrefix+kind)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
