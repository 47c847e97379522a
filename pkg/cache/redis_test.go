package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, opts ...Option) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	client, err := NewClient("redis://"+mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient("redis://"+addr, WithTimeouts(200*time.Millisecond, 200*time.Millisecond))
	assert.Error(t, err)
}

func TestClient_MarkAndMarked(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Mark(ctx, "revoked:abc", time.Hour))
	assert.True(t, mr.Exists("leadcrm:revoked:abc"))

	ok, err := client.Marked(ctx, "revoked:abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Marked(ctx, "revoked:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, client.Ping(ctx))
}

func TestClient_MarkNonPositiveTTL(t *testing.T) {
	client, mr := setupTestRedis(t)

	require.NoError(t, client.Mark(context.Background(), "gone", 0))
	assert.False(t, mr.Exists("leadcrm:gone"))
}

func TestClient_Namespace(t *testing.T) {
	client, mr := setupTestRedis(t, WithNamespace("staging:"))

	require.NoError(t, client.Mark(context.Background(), "k", time.Minute))
	assert.True(t, mr.Exists("staging:k"))
	assert.Equal(t, "staging:k", client.Key("k"))
}

func TestClient_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Mark(ctx, "k", 10*time.Minute))

	ttl, err := client.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	mr.FastForward(11 * time.Minute)
	ok, err := client.Marked(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
