package dedup

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const (
	valueReserved = "reserved"
	valueDone     = "done"

	// DefaultRedisPrefix namespaces dedup keys in a shared Redis.
	DefaultRedisPrefix = "freight:processed:"
)

// releaseScript deletes a key only while it still holds a reservation.
const releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// RedisBackend stores processed-document records in Redis. Reservations are
// SETNX'd with a TTL so an abandoned claim expires on its own.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend creates a RedisBackend. An empty prefix uses DefaultRedisPrefix.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) HasProcessed(ctx context.Context, key string) (bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "dedup: redis get")
	}
	return v == valueDone, nil
}

func (r *RedisBackend) MarkProcessed(ctx context.Context, key string) error {
	return eris.Wrap(r.client.Set(ctx, r.prefix+key, valueDone, 0).Err(), "dedup: redis set")
}

func (r *RedisBackend) Reserve(ctx context.Context, key string, staleAfter time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, valueReserved, staleAfter).Result()
	if err != nil {
		return false, eris.Wrap(err, "dedup: redis setnx")
	}
	return ok, nil
}

func (r *RedisBackend) Release(ctx context.Context, key string) error {
	err := r.client.Eval(ctx, releaseScript, []string{r.prefix + key}, valueReserved).Err()
	return eris.Wrap(err, "dedup: redis release")
}
