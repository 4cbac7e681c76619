package draw

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained means another instance holds the draw lock.
var ErrLockNotObtained = errors.New("draw lock not obtained")

type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes draws across server instances.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker is a Locker backed by bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// NopLocker always succeeds. It is used when Redis is not configured and
// only a single instance runs the schedule.
type NopLocker struct{}

type nopLock struct{}

func (nopLock) Release(context.Context) error { return nil }

func (NopLocker) Obtain(context.Context, string, time.Duration) (Lock, error) {
	return nopLock{}, nil
}
