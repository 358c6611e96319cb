package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type lockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLock is a best-effort mutual exclusion across processes. The TTL bounds
// how long a crashed holder can block other scans.
type RedisLock struct {
	rdb lockClient
	key string
	ttl time.Duration
}

// ScanLockKey is the key guarding the notification scan.
const ScanLockKey = "notify:scan:lock"

func NewRedisLock(rdb lockClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{rdb: rdb, key: key, ttl: ttl}
}

// Acquire tries once to take the lock. When acquired is true the caller must
// invoke release.
func (l *RedisLock) Acquire(ctx context.Context) (release func(), acquired bool, err error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// Release must outlive a cancelled scan context.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{l.key}, token).Err()
	}, true, nil
}
