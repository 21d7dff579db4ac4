package natsstan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	stan "github.com/nats-io/stan.go"
	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	ackWait        = 10 * time.Second
)

// Feed subscribes to per-order subjects "<SubjectPrefix>.<id>" on NATS
// Streaming. Each subscription owns its own connection.
type Feed struct {
	ClusterID     string
	ClientID      string
	URL           string
	SubjectPrefix string
	Logger        *zap.Logger
}

func (f *Feed) Subscribe(ctx context.Context, ids []string, handler func(raw []byte) bool, onError func(error)) (domain.FeedSubscription, error) {
	for _, id := range ids {
		if err := validToken(id); err != nil {
			return nil, err
		}
	}
	logger := f.logger()

	// a fresh client id per connection, stan rejects a reused id until the
	// server notices the previous connection is gone
	clientID := clientIDFor(f.ClientID)
	nc, err := nats.Connect(f.URL,
		nats.Name(clientID),
		nats.Timeout(connectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	sub := &subscription{nc: nc}
	sc, err := stan.Connect(f.ClusterID, clientID,
		stan.NatsConn(nc),
		stan.ConnectWait(connectTimeout),
		stan.SetConnectionLostHandler(func(_ stan.Conn, err error) {
			if !sub.isClosed() {
				onError(fmt.Errorf("stan connection lost: %w", err))
			}
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("stan connect: %w", err)
	}
	sub.sc = sc

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			_ = sub.Close()
			return nil, err
		}
		_, err := sc.Subscribe(Subject(f.SubjectPrefix, id), func(m *stan.Msg) {
			if !handler(m.Data) {
				// superseded, left for redelivery
				return
			}
			if err := m.Ack(); err != nil {
				logger.Debug("ack failed", zap.Error(err))
			}
		}, stan.StartWithLastReceived(), stan.SetManualAckMode(), stan.AckWait(ackWait))
		if err != nil {
			_ = sub.Close()
			return nil, fmt.Errorf("stan subscribe %s: %w", id, err)
		}
	}
	return sub, nil
}

func (f *Feed) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

type subscription struct {
	nc *nats.Conn
	sc stan.Conn

	mu     sync.Mutex
	closed bool
}

func (s *subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close drops every per-order subscription with the connection. Idempotent.
func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var err error
	if s.sc != nil {
		err = s.sc.Close()
	}
	s.nc.Close()
	return err
}

// Subject is the per-order subject events are published on.
func Subject(prefix, id string) string {
	if prefix == "" {
		prefix = "orders"
	}
	return prefix + "." + id
}

func validToken(id string) error {
	if id == "" || strings.ContainsAny(id, " \t.*>") {
		return fmt.Errorf("order id %q is not a valid subject token: %w", id, domain.ErrValidation)
	}
	return nil
}

func clientIDFor(base string) string {
	if base == "" {
		base = "storefront"
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString())
}

var _ domain.ChangeFeed = (*Feed)(nil)
