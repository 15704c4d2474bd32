package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	tenancy "github.com/prashantrr143/bhoomi-tenancy"
)

// RedisKV implements session persistence in Redis (key: tenancykv:{key}).
type RedisKV struct {
	client *redis.Client
	keyFmt string // format string, e.g. "tenancykv:%s"
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client, keyFmt: "tenancykv:%s"}
}

func (r *RedisKV) key(key string) string {
	return fmt.Sprintf(r.keyFmt, key)
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", key, tenancy.ErrKeyNotFound)
		}
		return "", err
	}
	return value, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
