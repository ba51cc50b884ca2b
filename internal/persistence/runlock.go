package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when it still holds our token,
// so a lock that expired and was re-acquired elsewhere is never released
// by the old holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`

// RedisRunLock serializes analysis runs across service instances using a
// SET NX lease.
type RedisRunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRunLock builds the cross-instance lock. The TTL bounds how long a
// crashed holder can block the next run.
func NewRunLock(r *Redis, key string, ttl time.Duration) *RedisRunLock {
	var client *redis.Client
	if r != nil {
		client = r.Client
	}
	return &RedisRunLock{client: client, key: key, ttl: ttl}
}

// Acquire attempts to take the lock. It returns false when another
// instance holds it. A missing or unreachable Redis degrades to acquired,
// leaving serialization to the in-process worker flag.
func (l *RedisRunLock) Acquire(ctx context.Context) (bool, error) {
	if l.client == nil {
		return true, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return true, nil
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release gives the lock back if we still hold it.
func (l *RedisRunLock) Release(ctx context.Context) error {
	if l.client == nil || l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	return l.client.Eval(ctx, releaseScript, []string{l.key}, token).Err()
}
