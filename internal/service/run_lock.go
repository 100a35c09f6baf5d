package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-allotment/internal/allotment"
)

// RunLocker guarantees that allotment runs never overlap.  Acquire does
// not wait: a held lock is reported as an INVALID_STATE error.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// NewRunLocker returns a Redis backed locker, or an in-process one when rdb
// is nil.
func NewRunLocker(rdb *redis.Client) RunLocker {
	if rdb == nil {
		return NewLocalRunLocker()
	}
	return &RedisRunLocker{rdb: rdb}
}

// releaseScript deletes the key only when it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLocker holds the lock as a key with a random token and a TTL.
type RedisRunLocker struct {
	rdb *redis.Client
}

func (l *RedisRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, allotment.Transient(err, "acquire run lock")
	}
	if !ok {
		return nil, allotment.InvalidState("another allotment run is in progress")
	}
	return func() {
		// The run context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}

// LocalRunLocker serialises runs within one process.
type LocalRunLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{held: make(map[string]bool)}
}

func (l *LocalRunLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, allotment.InvalidState("another allotment run is in progress")
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
