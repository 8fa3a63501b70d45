package ai

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetChecker checks and records daily token usage per learner.
type BudgetChecker interface {
	// Check returns true if the user has budget remaining today.
	Check(ctx context.Context, userID string) (bool, error)
	// Record adds token usage for the user.
	Record(ctx context.Context, userID string, tokens int) error
	// Usage returns today's usage and the user's daily limit (0 = unlimited).
	Usage(ctx context.Context, userID string) (used int64, limit int64, err error)
}

// InMemoryBudget is an in-process budget tracker for development and tests.
type InMemoryBudget struct {
	mu           sync.RWMutex
	defaultLimit int64
	limits       map[string]int64 // user -> daily limit
	usage        map[string]int64 // user:day -> tokens used
	now          func() time.Time
}

// NewInMemoryBudget creates a tracker where every user gets defaultLimit
// tokens a day. Zero means unlimited.
func NewInMemoryBudget(defaultLimit int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultLimit: defaultLimit,
		limits:       make(map[string]int64),
		usage:        make(map[string]int64),
		now:          time.Now,
	}
}

// SetBudget overrides the daily limit for one user.
func (b *InMemoryBudget) SetBudget(userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limits[userID] = tokens
}

func (b *InMemoryBudget) limit(userID string) int64 {
	if l, ok := b.limits[userID]; ok {
		return l
	}
	return b.defaultLimit
}

func (b *InMemoryBudget) Check(_ context.Context, userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	limit := b.limit(userID)
	if limit <= 0 {
		return true, nil
	}
	return b.usage[dayKey(userID, b.now())] < limit, nil
}

func (b *InMemoryBudget) Record(_ context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[dayKey(userID, b.now())] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[dayKey(userID, b.now())], b.limit(userID), nil
}

// RedisBudget keeps daily counters in Redis so every server instance shares
// the same view of a learner's usage.
type RedisBudget struct {
	client       *redis.Client
	defaultLimit int64
	prefix       string
	now          func() time.Time
}

// NewRedisBudget creates a Redis-backed tracker.
func NewRedisBudget(client *redis.Client, defaultLimit int64) *RedisBudget {
	return &RedisBudget{
		client:       client,
		defaultLimit: defaultLimit,
		prefix:       "speakeasy:tokens:",
		now:          time.Now,
	}
}

func (b *RedisBudget) key(userID string) string {
	return b.prefix + dayKey(userID, b.now())
}

func (b *RedisBudget) limitKey(userID string) string {
	return b.prefix + "limit:" + userID
}

// SetBudget overrides the daily limit for one user.
func (b *RedisBudget) SetBudget(ctx context.Context, userID string, tokens int64) error {
	if err := b.client.Set(ctx, b.limitKey(userID), tokens, 0).Err(); err != nil {
		return fmt.Errorf("setting budget: %w", err)
	}
	return nil
}

func (b *RedisBudget) Check(ctx context.Context, userID string) (bool, error) {
	used, limit, err := b.Usage(ctx, userID)
	if err != nil {
		return false, err
	}
	return limit <= 0 || used < limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	key := b.key(userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, userID string) (int64, int64, error) {
	vals, err := b.client.MGet(ctx, b.key(userID), b.limitKey(userID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("reading usage: %w", err)
	}
	used := parseCounter(vals[0])
	limit := b.defaultLimit
	if vals[1] != nil {
		limit = parseCounter(vals[1])
	}
	return used, limit, nil
}

func parseCounter(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func dayKey(userID string, t time.Time) string {
	return userID + ":" + t.UTC().Format(time.DateOnly)
}
