package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when no Redis client was set up.
var ErrNotConfigured = errors.New("cache not configured")

const lockKeyPrefix = "metergate:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker hands out best-effort distributed locks backed by SET NX PX.
type Locker struct {
	rdb redis.Cmdable
}

func NewLocker(rdb redis.Cmdable) *Locker {
	return &Locker{rdb: rdb}
}

// Lock is a held lock. The TTL bounds how long a crashed holder blocks others.
type Lock struct {
	rdb   redis.Scripter
	key   string
	token string
}

// Acquire tries to take the named lock. It returns (nil, false, nil) when the
// lock is held elsewhere.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, bool, error) {
	if l == nil || l.rdb == nil {
		return nil, false, ErrNotConfigured
	}
	key := lockKeyPrefix + name
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{rdb: l.rdb, key: key, token: token}, true, nil
}

// Release frees the lock if it is still ours.
func (lk *Lock) Release(ctx context.Context) error {
	if lk == nil {
		return nil
	}
	return releaseScript.Run(ctx, lk.rdb, []string{lk.key}, lk.token).Err()
}
