package redispubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Feed subscribes to per-order channels "<Prefix>:<id>" over Redis Pub/Sub.
type Feed struct {
	Client *redis.Client
	Prefix string
	Logger *zap.Logger
}

// NewFeed connects to Redis and verifies the connection.
func NewFeed(ctx context.Context, addr, password, prefix string, logger *zap.Logger) (*Feed, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Feed{Client: client, Prefix: prefix, Logger: logger}, nil
}

func (f *Feed) Subscribe(ctx context.Context, ids []string, handler func(raw []byte) bool, onError func(error)) (domain.FeedSubscription, error) {
	channels := make([]string, len(ids))
	for i, id := range ids {
		channels[i] = Channel(f.Prefix, id)
	}

	pubsub := f.Client.Subscribe(ctx, channels...)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to order channels: %w", err)
	}

	sub := &subscription{pubsub: pubsub, done: make(chan struct{})}
	go sub.pump(handler, onError, f.logger())
	return sub, nil
}

func (f *Feed) Close() error {
	return f.Client.Close()
}

func (f *Feed) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

type subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) pump(handler func(raw []byte) bool, onError func(error), logger *zap.Logger) {
	for msg := range s.pubsub.Channel() {
		_ = handler([]byte(msg.Payload))
	}
	select {
	case <-s.done:
	default:
		logger.Warn("order channel closed unexpectedly")
		onError(fmt.Errorf("redis pubsub channel closed"))
	}
}

// Close unsubscribes from every order channel. Idempotent.
func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// Channel is the per-order channel events are published on.
func Channel(prefix, id string) string {
	if prefix == "" {
		prefix = "orders"
	}
	return prefix + ":" + id
}

var _ domain.ChangeFeed = (*Feed)(nil)
