// Package lock serializes work on a single manufacturing order across
// requests, in-process or across replicas through Redis.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/plantops/plantops/internal/config"
	"github.com/plantops/plantops/internal/models"
)

// Lock is a held lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks. Obtain returns a *models.ConflictError when
// the lock is still held by someone else once retries are exhausted.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// MOKey is the lock key guarding a manufacturing order's transitions.
func MOKey(moID string) string {
	return "mo:" + moID
}

func notObtained(key string) error {
	return &models.ConflictError{Entity: "lock", ID: key, Reason: "held by another request"}
}

// ============================================================================
// LOCAL
// ============================================================================

// LocalLocker is an in-process Locker. The ttl is ignored; waiting stops
// when ctx ends or maxWait elapses.
type LocalLocker struct {
	mu      sync.Mutex
	held    map[string]chan struct{}
	maxWait time.Duration
}

// NewLocalLocker creates a LocalLocker. A zero maxWait waits for ctx only.
func NewLocalLocker(maxWait time.Duration) *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{}), maxWait: maxWait}
}

// Obtain blocks until key is free.
func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (Lock, error) {
	if l.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.maxWait)
		defer cancel()
	}

	for {
		l.mu.Lock()
		released, busy := l.held[key]
		if !busy {
			ch := make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			return &localLock{owner: l, key: key, ch: ch}, nil
		}
		l.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return nil, notObtained(key)
		}
	}
}

type localLock struct {
	owner *LocalLocker
	key   string
	ch    chan struct{}
	once  sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		if l.owner.held[l.key] == l.ch {
			delete(l.owner.held, l.key)
		}
		l.owner.mu.Unlock()
		close(l.ch)
	})
	return nil
}

// ============================================================================
// REDIS
// ============================================================================

// RedisLocker obtains locks through redislock with linear backoff.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	retry  redislock.RetryStrategy
}

// NewRedisLocker wraps a Redis client. Keys are namespaced with prefix.
func NewRedisLocker(rdb redislock.RedisClient, prefix string, retryInterval time.Duration, retryCount int) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(retryInterval), retryCount),
	}
}

// Obtain acquires key for ttl.
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lk, err := l.client.Obtain(ctx, l.prefix+key, ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, notObtained(key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining lock %s: %w", key, err)
	}
	return redisLock{lk}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		// Expired under us; nothing left to release.
		return nil
	}
	return err
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

// New builds the Locker selected by cfg. The returned close function releases
// any Redis connection.
func New(ctx context.Context, cfg config.LockingConfig) (Locker, func() error, error) {
	if cfg.Backend != config.LockBackendRedis {
		return NewLocalLocker(cfg.TTL.Duration), func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}

	return NewRedisLocker(rdb, "plantops:lock:", cfg.RetryInterval.Duration, cfg.RetryCount), rdb.Close, nil
}

// With runs fn while holding key.
func With(ctx context.Context, l Locker, key string, ttl time.Duration, fn func() error) error {
	lk, err := l.Obtain(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer lk.Release(context.WithoutCancel(ctx))
	return fn()
}
