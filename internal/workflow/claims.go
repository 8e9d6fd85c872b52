package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimStore de-duplicates activations per ticket. The first activation to
// claim a ticket owns it; re-claiming with the same activation id succeeds so
// a redelivered event resumes, while a different activation is refused.
type ClaimStore interface {
	Claim(ctx context.Context, ticketID, activationID string) (bool, error)
	// Release drops the claim if activationID still holds it.
	Release(ctx context.Context, ticketID, activationID string) error
}

// MemoryClaimStore keeps claims in process memory. With a positive ttl a
// claim lapses like its Redis counterpart, and lapsed claims are swept on Claim.
type MemoryClaimStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
	owners    map[string]memoryClaim
}

type memoryClaim struct {
	activationID string
	expiresAt    time.Time
}

func (c memoryClaim) lapsed(now time.Time) bool {
	return !c.expiresAt.IsZero() && !now.Before(c.expiresAt)
}

// NewMemoryClaimStore creates an empty claim store. A zero ttl holds claims
// until released.
func NewMemoryClaimStore(ttl time.Duration) *MemoryClaimStore {
	return &MemoryClaimStore{ttl: ttl, now: time.Now, owners: make(map[string]memoryClaim)}
}

// Claim implements ClaimStore.
func (s *MemoryClaimStore) Claim(_ context.Context, ticketID, activationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now)
	owner, held := s.owners[ticketID]
	if held && !owner.lapsed(now) {
		return owner.activationID == activationID, nil
	}
	claim := memoryClaim{activationID: activationID}
	if s.ttl > 0 {
		claim.expiresAt = now.Add(s.ttl)
	}
	s.owners[ticketID] = claim
	return true, nil
}

// Release implements ClaimStore.
func (s *MemoryClaimStore) Release(_ context.Context, ticketID, activationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owners[ticketID].activationID == activationID {
		delete(s.owners, ticketID)
	}
	return nil
}

// Len returns the number of claims held, lapsed ones included until swept.
func (s *MemoryClaimStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.owners)
}

func (s *MemoryClaimStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 || now.Before(s.nextSweep) {
		return
	}
	for id, c := range s.owners {
		if c.lapsed(now) {
			delete(s.owners, id)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisClaimStore keeps claims in Redis as SET NX keys with an expiry.
type RedisClaimStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClaimStore creates a Redis-backed claim store.
func NewRedisClaimStore(client *redis.Client, prefix string, ttl time.Duration) *RedisClaimStore {
	if prefix == "" {
		prefix = "workflow:claim"
	}
	return &RedisClaimStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisClaimStore) key(ticketID string) string {
	return s.prefix + ":" + ticketID
}

// Claim implements ClaimStore.
func (s *RedisClaimStore) Claim(ctx context.Context, ticketID, activationID string) (bool, error) {
	key := s.key(ticketID)
	ok, err := s.client.SetNX(ctx, key, activationID, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return true, nil
	}

	owner, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.client.SetNX(ctx, key, activationID, s.ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("read claim %s: %w", key, err)
	}
	return owner == activationID, nil
}

// Release implements ClaimStore.
func (s *RedisClaimStore) Release(ctx context.Context, ticketID, activationID string) error {
	if err := s.client.Eval(ctx, releaseScript, []string{s.key(ticketID)}, activationID).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}
