package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
const releaseScript = `if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end; return 0`

// Lock is a TTL lock: Redis SETNX when available, in-memory otherwise (single instance only).
type Lock struct {
	rc   *redis.Client
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLock creates a lock backed by rc; rc may be nil.
func NewLock(rc *redis.Client) *Lock {
	return &Lock{rc: rc, held: map[string]time.Time{}}
}

// TryAcquire takes key for ttl. ok is false when someone else holds it.
func (l *Lock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool) {
	if l.rc != nil {
		token := uuid.NewString()
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		acquired, err := l.rc.SetNX(cctx, key, token, ttl).Result()
		if err == nil {
			if !acquired {
				return func() {}, false
			}
			return func() {
				rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer rcancel()
				_ = l.rc.Eval(rctx, releaseScript, []string{key}, token).Err()
			}, true
		}
		// Redis unreachable: fall back to the local lock rather than skipping work forever
		Sugar.Warnf("lock: redis setnx failed key=%s err=%v, using in-memory lock", key, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if exp, busy := l.held[key]; busy && time.Now().Before(exp) {
		return func() {}, false
	}
	l.held[key] = time.Now().Add(ttl)
	return func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}, true
}
