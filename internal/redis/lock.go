package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("resource lock not acquired")
)

// Locker guards the commit of a booking across every resource it occupies.
type Locker interface {
	WithResourceLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

func RoomKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:room:%s", id)
}

func ProfessionalKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:professional:%s", id)
}

// ResourceKeys returns the sorted, de-duplicated lock keys for a booking.
func ResourceKeys(roomID *uuid.UUID, professionalIDs []uuid.UUID) []string {
	seen := map[string]struct{}{}
	var keys []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if roomID != nil {
		add(RoomKey(*roomID))
	}
	for _, id := range professionalIDs {
		add(ProfessionalKey(id))
	}
	sort.Strings(keys)
	return keys
}

type redisResourceLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResourceLocker creates a locker that takes one Redis key per
// resource. Keys are acquired in sorted order and all are released when fn
// returns; if any key is held elsewhere nothing is kept.
func NewRedisResourceLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisResourceLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisResourceLocker) WithResourceLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = append([]string(nil), keys...)
	sort.Strings(keys)
	token := uuid.NewString()

	var held []string
	defer func() {
		for _, k := range held {
			_ = l.release(context.WithoutCancel(ctx), k, token)
		}
	}()

	for _, key := range keys {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire resource lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisResourceLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release resource lock: %w", err)
	}
	return nil
}
