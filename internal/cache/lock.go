package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zfogg/petfinder/internal/telemetry"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock is held by another owner")

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is an acquired distributed lock
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Key returns the Redis key backing the lock
func (l *Lock) Key() string {
	return l.key
}

// Release frees the lock if this holder still owns it
func (l *Lock) Release(ctx context.Context) error {
	ctx, span := telemetry.TraceCacheCall(ctx, "unlock", l.key)
	defer span.End()

	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// AcquireLock takes key with SET NX and the given TTL. It returns
// ErrLockHeld without waiting when the key already exists.
func (rc *RedisClient) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	ctx, span := telemetry.TraceCacheCall(ctx, "lock", key)
	defer span.End()

	token := uuid.New().String()
	ok, err := rc.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{client: rc.client, key: key, token: token}, nil
}
