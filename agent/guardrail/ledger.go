package guardrail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger counts accepted trading orders per session.
type Ledger interface {
	Count(ctx context.Context, sessionID string) (int, error)
	Increment(ctx context.Context, sessionID string) (int, error)
	Reset(ctx context.Context, sessionID string) error
}

// MemoryLedger is process-local and forgets everything on restart.
type MemoryLedger struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counts: make(map[string]int)}
}

func (l *MemoryLedger) Count(_ context.Context, sessionID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[sessionID], nil
}

func (l *MemoryLedger) Increment(_ context.Context, sessionID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[sessionID]++
	return l.counts[sessionID], nil
}

func (l *MemoryLedger) Reset(_ context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, sessionID)
	return nil
}

// Has reports whether a ledger entry exists for the session.
func (l *MemoryLedger) Has(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.counts[sessionID]
	return ok
}

type RedisLedgerConfig struct {
	Addr      string        `envconfig:"ADDR" split_words:"true" default:"localhost:6379"`
	Password  string        `envconfig:"PASSWORD" split_words:"true"`
	DB        int           `envconfig:"DB" split_words:"true" default:"0"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"stockdesk:orders:"`
	TTL       time.Duration `envconfig:"TTL" split_words:"true" default:"24h"`
}

// RedisLedger shares order counts between processes. TTL bounds how long an
// idle session keeps its count.
type RedisLedger struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

func NewRedisLedger(rdb redis.UniversalClient, keyPrefix string, ttl time.Duration) (*RedisLedger, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "stockdesk:orders:"
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return &RedisLedger{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}, nil
}

// DialRedisLedger connects and pings before returning.
func DialRedisLedger(ctx context.Context, cfg RedisLedgerConfig) (*RedisLedger, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLedger(rdb, cfg.KeyPrefix, cfg.TTL)
}

func (l *RedisLedger) key(sessionID string) string {
	return l.keyPrefix + sessionID
}

func (l *RedisLedger) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := l.rdb.Get(ctx, l.key(sessionID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (l *RedisLedger) Increment(ctx context.Context, sessionID string) (int, error) {
	key := l.key(sessionID)
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (l *RedisLedger) Reset(ctx context.Context, sessionID string) error {
	return l.rdb.Del(ctx, l.key(sessionID)).Err()
}

func (l *RedisLedger) Close() error {
	return l.rdb.Close()
}
