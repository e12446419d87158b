package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/telemetry/pkg/adapters/redis"
	"github.com/aretw0/telemetry/pkg/domain"
	"github.com/aretw0/telemetry/pkg/locking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setupRedis(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, "ds-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:ds-1"), "Lock key should be set in Redis")

	// 2. Release Lock
	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:ds-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := setupRedis(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:").WithPollInterval(10 * time.Millisecond)
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "ds-1", 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker2.Lock(ctxTimeout, "ds-1", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "ds-1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	mr, client := setupRedis(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "ds-1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock2, err := locker.Lock(ctx, "ds-1", 5*time.Second)
	require.NoError(t, err)

	// The first holder's late release must not drop the second holder's lock.
	require.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:ds-1"))
	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("test:lock:ds-1"))
}

func TestRedisLocker_ManagerBusy(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()

	// Two managers stand in for two processes.
	a := locking.NewManager(locking.WithLocker(redis.NewLocker(client, "test:")))
	b := locking.NewManager(locking.WithLocker(redis.NewLocker(client, "test:").WithPollInterval(5 * time.Millisecond)))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = a.WithLock(ctx, "ds-1", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := b.TryWithLock(ctx, "ds-1", 50*time.Millisecond, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, domain.ErrLockBusy)
}
