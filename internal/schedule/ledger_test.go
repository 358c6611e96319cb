package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLedger_Claim(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	l := NewRedisLedger(rdb)
	day := at(8, 45, 0)

	ok, err := l.Claim(ctx, 1, 15, day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Claim(ctx, 1, 15, day)
	require.NoError(t, err)
	assert.False(t, ok, "second claim in the same day must fail")

	ok, err = l.Claim(ctx, 1, 10, day)
	require.NoError(t, err)
	assert.True(t, ok, "a different lead is a different pair")

	key := "notify:fired:2025-03-10:1:15"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, ledgerTTL, mr.TTL(key))

	mr.FastForward(ledgerTTL + time.Second)
	ok, err = l.Claim(ctx, 1, 15, day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLedger_Error(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	_, err := NewRedisLedger(rdb).Claim(context.Background(), 1, 15, at(8, 45, 0))
	assert.Error(t, err)
}

func TestMemoryLedger_Claim(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	today := at(8, 45, 0)

	ok, _ := l.Claim(ctx, 1, 15, today)
	assert.True(t, ok)
	ok, _ = l.Claim(ctx, 1, 15, today)
	assert.False(t, ok)

	tomorrow := today.Add(24 * time.Hour)
	ok, _ = l.Claim(ctx, 1, 15, tomorrow)
	assert.True(t, ok)
}

func TestRedisLock(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	a := NewRedisLock(rdb, ScanLockKey, time.Minute)
	b := NewRedisLock(rdb, ScanLockKey, time.Minute)

	release, ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists(ScanLockKey))

	releaseB, ok, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	releaseB()
}

func TestRedisLock_ReleaseKeepsForeignToken(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	l := NewRedisLock(rdb, ScanLockKey, time.Minute)
	release, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Lock expired and another holder took it.
	require.NoError(t, mr.Set(ScanLockKey, "someone-else"))
	release()

	v, err := mr.Get(ScanLockKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
