package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/storefront-sync/internal/adapter/natsstan"
	"github.com/example/storefront-sync/internal/adapter/redispubsub"
	"github.com/example/storefront-sync/internal/config"
	"github.com/example/storefront-sync/internal/domain"
	"github.com/example/storefront-sync/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type publisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
	Close() error
}

type options struct {
	id          string
	status      string
	amount      int64
	reason      string
	clearReason bool
	delete      bool
	stdin       bool
}

func main() {
	configPath := flag.String("config", "", "config file path (optional)")
	var opts options
	flag.StringVar(&opts.id, "id", "", "order id")
	flag.StringVar(&opts.status, "status", "", "remote status, e.g. Processing")
	flag.Int64Var(&opts.amount, "amount", -1, "confirmed total amount (omitted when negative)")
	flag.StringVar(&opts.reason, "reason", "", "rejection reason")
	flag.BoolVar(&opts.clearReason, "clear-reason", false, "send an explicit null rejection reason")
	flag.BoolVar(&opts.delete, "delete", false, "publish a delete event")
	flag.BoolVar(&opts.stdin, "stdin", false, "read the event envelope as JSON from stdin")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info"})
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	if !cfg.FeedConfigured() {
		log.Fatal("feed transport not configured", zap.String("transport", cfg.Feed.Transport))
	}

	ev, err := buildEvent(opts)
	if err != nil {
		log.Fatal("build event", zap.Error(err))
	}

	pub, err := openPublisher(cfg)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer func() { _ = pub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		log.Fatal("publish", zap.Error(err))
	}
	log.Info("published", zap.String("type", string(ev.Kind)), zap.String("order_id", ev.OrderID()))
}

func buildEvent(o options) (domain.OrderEvent, error) {
	if o.stdin {
		var raw json.RawMessage
		if err := json.NewDecoder(os.Stdin).Decode(&raw); err != nil {
			return domain.OrderEvent{}, fmt.Errorf("read json from stdin: %w", err)
		}
		return domain.DecodeOrderEvent(raw)
	}
	if o.id == "" {
		return domain.OrderEvent{}, fmt.Errorf("-id is required: %w", domain.ErrValidation)
	}
	if o.delete {
		return domain.OrderEvent{Kind: domain.EventDelete, OldRecord: &domain.RemoteOrder{ID: o.id}}, nil
	}
	rec := &domain.RemoteOrder{ID: o.id, Status: o.status}
	if o.amount >= 0 {
		rec.TotalAmount = domain.Some(o.amount)
	}
	switch {
	case o.clearReason:
		rec.RejectionReason = domain.Null[string]()
	case o.reason != "":
		rec.RejectionReason = domain.Some(o.reason)
	}
	return domain.OrderEvent{Kind: domain.EventUpdate, Record: rec}, nil
}

func openPublisher(cfg config.Config) (publisher, error) {
	switch cfg.Feed.Transport {
	case config.TransportStan:
		return natsstan.NewPublisher(cfg.Feed.NatsURL, cfg.Feed.ClusterID, "storefront-admin", cfg.Feed.SubjectPrefix)
	case config.TransportRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Feed.RedisAddr, Password: cfg.Feed.RedisPassword})
		return &redispubsub.Publisher{Client: client, Prefix: cfg.Feed.SubjectPrefix}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Feed.Transport)
}
