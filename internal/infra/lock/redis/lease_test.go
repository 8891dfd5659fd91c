package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseGrantsOneHolderPerTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := NewLease(client, "replica-a")
	b := NewLease(client, "replica-b")
	ctx := context.Background()

	ok, err := a.Acquire(ctx, "sweep:booking-completion", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "sweep:booking-completion", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	owner, err := srv.Get("rentacar:lease:sweep:booking-completion")
	require.NoError(t, err)
	assert.Equal(t, "replica-a", owner)

	srv.FastForward(2 * time.Minute)
	ok, err = b.Acquire(ctx, "sweep:booking-completion", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnect(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+srv.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = Connect(context.Background(), "://bad")
	assert.Error(t, err)
}
