// Package locks provides per-series mutual exclusion for generation
// runs: an in-process keyed lock for single-binary deployments and a
// Redis lock for multi-process ones.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when releasing a lock another holder took over.
var ErrNotHeld = errors.New("lock not held")

// Locker serializes work per key. Acquire blocks until the lock is
// held or ctx is done; the returned release frees it.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func() error, err error)
}

// Keyed is an in-process Locker.
type Keyed struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// NewKeyed creates an in-process keyed locker.
func NewKeyed() *Keyed {
	return &Keyed{held: make(map[string]chan struct{})}
}

// Acquire takes the lock for key, waiting for the current holder.
func (k *Keyed) Acquire(ctx context.Context, key string) (func() error, error) {
	for {
		k.mu.Lock()
		ch, taken := k.held[key]
		if !taken {
			done := make(chan struct{})
			k.held[key] = done
			k.mu.Unlock()
			return func() error {
				k.mu.Lock()
				delete(k.held, key)
				k.mu.Unlock()
				close(done)
				return nil
			}, nil
		}
		k.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ch:
		}
	}
}

// releaseScript deletes the key only when still owned by our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Redis is a Locker backed by SET NX with a per-holder token.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis creates a Redis locker. ttl bounds how long a crashed
// holder can block others.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{client: client, ttl: ttl, retry: 100 * time.Millisecond}
}

// Acquire polls SET NX until the lock is taken or ctx is done.
func (r *Redis) Acquire(ctx context.Context, key string) (func() error, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() error {
				n, err := releaseScript.Run(context.Background(), r.client, []string{key}, token).Int()
				if err != nil {
					return fmt.Errorf("release lock %s: %w", key, err)
				}
				if n == 0 {
					return fmt.Errorf("release lock %s: %w", key, ErrNotHeld)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
