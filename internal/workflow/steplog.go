package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StepLog persists completed step results.
type StepLog interface {
	// Get returns the stored value and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// MemoryStepLog keeps step results in process memory. Results do not survive
// a restart. With a positive ttl, entries expire and are swept on writes.
type MemoryStepLog struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
	entries   map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryStepLog creates an empty in-memory log. A zero ttl keeps entries forever.
func NewMemoryStepLog(ttl time.Duration) *MemoryStepLog {
	return &MemoryStepLog{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

// Get implements StepLog.
func (l *MemoryStepLog) Get(_ context.Context, key string) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[key]
	if !ok || e.expired(l.now()) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Put implements StepLog.
func (l *MemoryStepLog) Put(_ context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if l.ttl > 0 {
		e.expiresAt = now.Add(l.ttl)
		l.sweepLocked(now)
	}
	l.entries[key] = e
	return nil
}

func (l *MemoryStepLog) sweepLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, e := range l.entries {
		if e.expired(now) {
			delete(l.entries, k)
		}
	}
	l.nextSweep = now.Add(l.ttl)
}

// Len returns the number of stored results, expired ones included until swept.
func (l *MemoryStepLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// RedisStepLog stores step results in Redis with an expiry.
type RedisStepLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStepLog creates a Redis-backed log. A zero ttl keeps entries forever.
func NewRedisStepLog(client *redis.Client, ttl time.Duration) *RedisStepLog {
	return &RedisStepLog{client: client, ttl: ttl}
}

// Get implements StepLog.
func (l *RedisStepLog) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := l.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Put implements StepLog.
func (l *RedisStepLog) Put(ctx context.Context, key string, value []byte) error {
	if err := l.client.Set(ctx, key, value, l.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
