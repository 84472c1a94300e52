package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

const keyPrefix = "lock:slot:"

// Locker runs fn while holding an exclusive, fail-fast lock on key. Two key
// shapes are in use:
//
//	<doctor>:<date>:<time>  one bookable slot, see appointment.SlotKey
//	session:<id>            one chat conversation, see SessionKey
//
// The slot lock serialises finalizing a booking; the session lock keeps two
// turns of the same conversation from interleaving.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// SessionKey is the lock key for a chat session's turns.
func SessionKey(sessionID string) string { return "session:" + sessionID }

type redisSlotLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSlotLocker stores each lock as "lock:slot:<key>" holding a random
// token, so only the holder releases it. ttl bounds both the key and fn.
func NewRedisSlotLocker(client redis.UniversalClient, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error {
	key := keyPrefix + lockKey
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	held, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(held)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// localSlotLocker is the single-process stand-in used with the memory
// storage backend. A held key fails fast like the Redis variant.
type localSlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalSlotLocker() Locker {
	return &localSlotLocker{held: make(map[string]struct{})}
}

func (l *localSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[key]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[key] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
