package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront-sync/internal/adapter/cache"
	"github.com/example/storefront-sync/internal/adapter/httpapi"
	"github.com/example/storefront-sync/internal/adapter/natsstan"
	"github.com/example/storefront-sync/internal/adapter/notify"
	"github.com/example/storefront-sync/internal/adapter/redispubsub"
	"github.com/example/storefront-sync/internal/adapter/repo"
	"github.com/example/storefront-sync/internal/config"
	"github.com/example/storefront-sync/internal/domain"
	"github.com/example/storefront-sync/internal/logger"
	"github.com/example/storefront-sync/internal/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storefront: load config: %v\n", err)
		return 1
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := serve(ctx, cfg, log); err != nil {
		log.Error("storefront stopped", zap.Error(err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	storage, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStorage()

	feed, closeFeed := openFeed(ctx, cfg, log)
	defer closeFeed()

	cart := usecase.NewCartStore(ctx, storage, log.Named("cart"))
	orders := usecase.NewOrderStore(ctx, storage, log.Named("orders"))

	notes := notify.NewRecorder(0)
	engine := usecase.NewSyncEngine(orders, feed, notify.Fanout{notes, notify.Logger{L: log.Named("notify")}}, log)

	api := httpapi.NewServer(cart, orders, engine, notes, log.Named("http"))
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.StorageConfig) (domain.StateStorage, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return cache.NewMemoryStateCache(), func() {}, nil
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("init schema: %w", err)
		}
		return repo.NewPostgresStateRepo(pool), pool.Close, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis connect: %w", err)
		}
		return repo.NewRedisStateRepo(client, "storefront:"), func() { _ = client.Close() }, nil
	default:
		r, err := repo.NewFileStateRepo(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return r, func() {}, nil
	}
}

// openFeed returns a nil feed when the transport is not configured or cannot
// be constructed; order sync then stays idle until restart.
func openFeed(ctx context.Context, cfg config.Config, log *zap.Logger) (domain.ChangeFeed, func()) {
	if !cfg.FeedConfigured() {
		return nil, func() {}
	}
	switch cfg.Feed.Transport {
	case config.TransportStan:
		return &natsstan.Feed{
			ClusterID:     cfg.Feed.ClusterID,
			ClientID:      cfg.Feed.ClientID,
			URL:           cfg.Feed.NatsURL,
			SubjectPrefix: cfg.Feed.SubjectPrefix,
			Logger:        log.Named("stan"),
		}, func() {}
	case config.TransportRedis:
		feed, err := redispubsub.NewFeed(ctx, cfg.Feed.RedisAddr, cfg.Feed.RedisPassword, cfg.Feed.SubjectPrefix, log.Named("redis"))
		if err != nil {
			log.Warn("order feed unavailable", zap.Error(err))
			return nil, func() {}
		}
		return feed, func() { _ = feed.Close() }
	}
	return nil, func() {}
}
