package lock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis lock defaults
const (
	DefaultKeyPrefix    = "ytbot:lock:"
	DefaultLockTTL      = time.Hour
	DefaultPollInterval = 200 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same redis
type RedisLocker struct {
	rdb          redis.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
}

// NewRedisLocker creates a redis backed locker.
// ttl bounds how long a crashed holder keeps a key.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{
		rdb:          rdb,
		prefix:       DefaultKeyPrefix,
		ttl:          ttl,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval sets how often a waiter retries
func (l *RedisLocker) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.pollInterval = d
	}
}

// Lock retries SET NX until it wins the key or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must survive a cancelled request context
			if err := releaseScript.Run(context.Background(), l.rdb, []string{redisKey}, token).Err(); err != nil {
				log.Printf("[WARN] failed to release lock %s: %v", key, err)
			}
		})
	}, nil
}
