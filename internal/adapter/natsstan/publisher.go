package natsstan

import (
	"context"
	"fmt"

	"github.com/example/storefront-sync/internal/domain"
	stan "github.com/nats-io/stan.go"
)

// Publisher sends order change events, the admin side of Feed.
type Publisher struct {
	sc     stan.Conn
	prefix string
}

func NewPublisher(url, clusterID, clientID, prefix string) (*Publisher, error) {
	sc, err := stan.Connect(clusterID, clientIDFor(clientID), stan.NatsURL(url), stan.ConnectWait(connectTimeout))
	if err != nil {
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	return &Publisher{sc: sc, prefix: prefix}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := ev.OrderID()
	if err := validToken(id); err != nil {
		return err
	}
	raw, err := domain.EncodeOrderEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.sc.Publish(Subject(p.prefix, id), raw)
}

func (p *Publisher) Close() error {
	return p.sc.Close()
}
