package redisrepo

import (
	"context"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/token/refresh"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ refresh.Repo = (*RedisRepo)(nil)

// RedisRepo stores values under a per-tab key prefix.
// Key format: tab:<tab_id>:<key>
// A ttl bounds how long an abandoned tab's refresh token survives.
type RedisRepo struct {
	client *redis.Client
	tabID  string
	ttl    time.Duration
}

// New creates a RedisRepo scoped to tabID. A ttl of zero keeps keys until deleted.
func New(client *redis.Client, tabID string, ttl time.Duration) *RedisRepo {
	return &RedisRepo{client: client, tabID: tabID, ttl: ttl}
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", autherrors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[RedisRepo.Get] client.Get")
	}
	return v, nil
}

func (r *RedisRepo) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Set] client.Set")
	}
	return nil
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Delete] client.Del")
	}
	return nil
}

func (r *RedisRepo) key(key string) string {
	return fmt.Sprintf("tab:%s:%s", r.tabID, key)
}
