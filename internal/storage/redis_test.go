package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "app:match:lock:3:7", MatchPairLockKey(3, 7))
	assert.Equal(t, "app:parse:lock:abc", ParseJobLockKey("abc"))
}

func TestAcquireAndReleaseLock(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()
	key := MatchPairLockKey(1, 2)

	token, err := r.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, mr.Exists(key))

	_, err = r.AcquireLock(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	// 非持有者不能释放
	released, err := r.ReleaseLock(ctx, key, "other")
	require.NoError(t, err)
	assert.False(t, released)

	released, err = r.ReleaseLock(ctx, key, token)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists(key))
}

func TestLockExpires(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()
	key := MatchPairLockKey(5, 6)

	_, err := r.AcquireLock(ctx, key, time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = r.AcquireLock(ctx, key, time.Second)
	assert.NoError(t, err)
}

func TestWaitLockGivesUp(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()
	key := MatchPairLockKey(8, 9)

	_, err := r.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.WaitLock(ctx, key, time.Minute, 120*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Less(t, time.Since(start), 2*time.Second)
}
