package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))

	release2, err := locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestLockerReleaseDoesNotStealNewHolder(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	staleRelease, err := locker.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, staleRelease(ctx))
	require.True(t, mr.Exists("k"))
}

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	client, err = New(context.Background(), "redis://"+mr.Addr()+"/2")
	require.NoError(t, err)
	require.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = New(context.Background(), mr.Addr())
	require.Error(t, err)
}

func TestOptionsRejectsBadURL(t *testing.T) {
	_, err := Options("redis://:bad:port/x")
	require.Error(t, err)
}
