package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestClaimOnce(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	won, err := client.ClaimOnce(ctx, "lead_claim:+27821234567", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)

	lost, err := client.ClaimOnce(ctx, "lead_claim:+27821234567", time.Hour)
	require.NoError(t, err)
	assert.False(t, lost)

	// A different phone is an independent claim
	other, err := client.ClaimOnce(ctx, "lead_claim:+27829999999", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestClaimOnceExpires(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	won, err := client.ClaimOnce(ctx, "lead_claim:+27821234567", time.Hour)
	require.NoError(t, err)
	require.True(t, won)

	mr.FastForward(time.Hour + time.Minute)

	again, err := client.ClaimOnce(ctx, "lead_claim:+27821234567", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestReleaseClaim(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	won, err := client.ClaimOnce(ctx, "lead_claim:+27821234567", time.Hour)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, client.ReleaseClaim(ctx, "lead_claim:+27821234567"))

	again, err := client.ClaimOnce(ctx, "lead_claim:+27821234567", time.Hour)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestAllowRequest(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := client.AllowRequest(ctx, "chat:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	blocked, err := client.AllowRequest(ctx, "chat:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, blocked)

	// Another client is limited independently
	ok, err := client.AllowRequest(ctx, "chat:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
