package repo

import (
	"context"
	"errors"

	"github.com/example/storefront-sync/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStateRepo stores each store's state as a plain string key.
type RedisStateRepo struct {
	Client *redis.Client
	// Prefix is prepended to every key, e.g. "storefront:".
	Prefix string
}

func NewRedisStateRepo(client *redis.Client, prefix string) *RedisStateRepo {
	return &RedisStateRepo{Client: client, Prefix: prefix}
}

func (r *RedisStateRepo) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (r *RedisStateRepo) Save(ctx context.Context, key string, raw []byte) error {
	return r.Client.Set(ctx, r.Prefix+key, raw, 0).Err()
}

var _ domain.StateStorage = (*RedisStateRepo)(nil)
