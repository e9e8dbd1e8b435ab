package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatalytics/threatalytics-go/pkg/session"
)

// setupTestRedis creates a Redis client for testing.
// Requires Redis running on localhost:6379.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func TestNew_NilClient(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestNew_DefaultsPrefix(t *testing.T) {
	client := setupTestRedis(t)
	s, err := New(client, Config{})
	require.NoError(t, err)
	assert.Equal(t, "threatalytics:tokens", s.key(tokensKey))
}

func TestStore_ReadEmpty(t *testing.T) {
	client := setupTestRedis(t)
	s, err := New(client, DefaultConfig())
	require.NoError(t, err)

	bundle, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, bundle.Empty())

	ts, err := s.ReadRefreshTime(context.Background())
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestStore_WriteReadRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	s, err := New(client, DefaultConfig())
	require.NoError(t, err)

	in := session.Bundle{
		AccessToken:  "access",
		IDToken:      "id",
		RefreshToken: "refresh",
	}
	require.NoError(t, s.Write(ctx, in))

	out, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStore_WriteReplacesWholeBundle(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	s, _ := New(client, DefaultConfig())

	require.NoError(t, s.Write(ctx, session.Bundle{AccessToken: "a", IDToken: "i", RefreshToken: "r"}))
	require.NoError(t, s.Write(ctx, session.Bundle{AccessToken: "a2"}))

	out, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.Bundle{AccessToken: "a2"}, out)
}

func TestStore_RefreshTimeRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	s, _ := New(client, DefaultConfig())

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.WriteRefreshTime(ctx, now))

	got, err := s.ReadRefreshTime(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(now), "expected %v, got %v", now, got)
}

func TestStore_Clear(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	s, _ := New(client, DefaultConfig())

	require.NoError(t, s.Write(ctx, session.Bundle{AccessToken: "a"}))
	require.NoError(t, s.WriteRefreshTime(ctx, time.Now()))
	require.NoError(t, s.Clear(ctx))

	bundle, err := s.Read(ctx)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())

	ts, err := s.ReadRefreshTime(ctx)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestStore_TTL(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	s, err := New(client, Config{KeyPrefix: "ttl-test:", TTL: time.Hour})
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, session.Bundle{AccessToken: "a"}))

	ttl, err := client.TTL(ctx, "ttl-test:tokens").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)
}
