package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XANDER-CAGE/dating/internal/cache"
	"github.com/XANDER-CAGE/dating/internal/config"
	"github.com/XANDER-CAGE/dating/internal/presence"
)

const testTTL = 30 * time.Second

// setupCache starts a miniredis and wraps it in the app's cache client.
func setupCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	return cache.NewRedisCache(cfg), mr
}

func TestRegisterAndLocate(t *testing.T) {
	ctx := context.Background()
	rc, _ := setupCache(t)
	reg := presence.NewRegistry(rc, "p1", testTTL)

	online, err := reg.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, reg.Register(ctx, 7, "conn-a"))

	procID, connID, ok, err := reg.Locate(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p1", procID)
	assert.Equal(t, "conn-a", connID)
}

// A user drops off process P1 and reconnects on P2. The late disconnect
// from P1 must not evict the fresh P2 entry, and events after the
// reconnect resolve to P2 only.
func TestReconnectOnAnotherProcess(t *testing.T) {
	ctx := context.Background()
	rc, _ := setupCache(t)
	p1 := presence.NewRegistry(rc, "p1", testTTL)
	p2 := presence.NewRegistry(rc, "p2", testTTL)

	require.NoError(t, p1.Register(ctx, 7, "conn-a"))

	// reconnect on p2: last writer wins immediately
	require.NoError(t, p2.Register(ctx, 7, "conn-b"))

	procID, connID, ok, err := p2.Locate(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p2", procID)
	assert.Equal(t, "conn-b", connID)

	// the stale disconnect arrives late on p1 and is a no-op
	require.NoError(t, p1.Deregister(ctx, 7, "conn-a"))

	procID, _, ok, err = p1.Locate(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok, "p2 entry survives the stale deregister")
	assert.Equal(t, "p2", procID)
}

func TestDeregisterOwnEntry(t *testing.T) {
	ctx := context.Background()
	rc, _ := setupCache(t)
	reg := presence.NewRegistry(rc, "p1", testTTL)

	require.NoError(t, reg.Register(ctx, 7, "conn-a"))
	require.NoError(t, reg.Deregister(ctx, 7, "conn-a"))

	online, err := reg.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestHeartbeatOnlyRefreshesOwnEntry(t *testing.T) {
	ctx := context.Background()
	rc, mr := setupCache(t)
	p1 := presence.NewRegistry(rc, "p1", testTTL)
	p2 := presence.NewRegistry(rc, "p2", testTTL)

	require.NoError(t, p1.Register(ctx, 7, "conn-a"))
	require.NoError(t, p2.Register(ctx, 7, "conn-b"))

	// p1's heartbeat must not resurrect its superseded entry
	require.NoError(t, p1.Heartbeat(ctx, 7, "conn-a"))
	require.NoError(t, p2.Heartbeat(ctx, 7, "conn-b"))

	// crash recovery: the TTL reaps entries with no heartbeat
	mr.FastForward(testTTL + time.Second)

	online, err := p2.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online, "entry expired without further heartbeats")
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	rc, mr := setupCache(t)
	reg := presence.NewRegistry(rc, "p1", testTTL)

	require.NoError(t, reg.Register(ctx, 7, "conn-a"))

	mr.FastForward(testTTL / 2)
	online, err := reg.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online)

	// a heartbeat pushes expiry out
	require.NoError(t, reg.Heartbeat(ctx, 7, "conn-a"))
	mr.FastForward(testTTL/2 + time.Second)
	online, err = reg.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online, "heartbeat extended the TTL")

	mr.FastForward(testTTL)
	online, err = reg.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}
