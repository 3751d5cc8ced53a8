// Package writelock guards the ledger writer across processes sharing one
// installation.
package writelock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

var ErrBusy = errors.New("another writer holds the ledger lock")

type Lease interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context) (Lease, error)
	// Shared reports whether other processes may write the same ledger, in
	// which case state must be reloaded after acquiring the lock.
	Shared() bool
}

type Noop struct{}

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }

func (Noop) Acquire(context.Context) (Lease, error) { return noopLease{}, nil }

func (Noop) Shared() bool { return false }

type Redis struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func Key(installation string) string {
	return fmt.Sprintf("lock:%s", installation)
}

func NewRedis(client *redis.Client, installation string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client: redislock.New(client),
		key:    Key(installation),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 100),
	}
}

func (r *Redis) Acquire(ctx context.Context) (Lease, error) {
	lock, err := r.client.Obtain(ctx, r.key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", r.key, err)
	}
	return lock, nil
}

func (r *Redis) Shared() bool { return true }
