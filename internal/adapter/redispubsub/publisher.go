package redispubsub

import (
	"context"
	"fmt"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Publisher sends order change events, the admin side of Feed.
type Publisher struct {
	Client *redis.Client
	Prefix string
}

func (p *Publisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	id := ev.OrderID()
	if id == "" {
		return fmt.Errorf("event without order id: %w", domain.ErrValidation)
	}
	raw, err := domain.EncodeOrderEvent(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.Client.Publish(ctx, Channel(p.Prefix, id), raw).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.Client.Close()
}
