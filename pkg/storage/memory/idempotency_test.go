package memory

import (
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache(t *testing.T) {
	ctx := context.Background()
	cache := NewIdempotencyCache(2, time.Hour)

	got, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	first := &storage.CachedResponse{StatusCode: 201, Body: []byte(`{"id":"pay-1"}`)}
	stored, err := cache.Put(ctx, "k1", first)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = cache.Put(ctx, "k1", &storage.CachedResponse{StatusCode: 500})
	require.NoError(t, err)
	assert.False(t, stored, "first writer wins")

	got, err = cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	_, _ = cache.Put(ctx, "k2", &storage.CachedResponse{StatusCode: 201})
	_, _ = cache.Put(ctx, "k3", &storage.CachedResponse{StatusCode: 201})
	assert.Equal(t, 2, cache.Len())
}

func TestIdempotencyCache_Expiry(t *testing.T) {
	ctx := context.Background()
	cache := NewIdempotencyCache(10, 50*time.Millisecond)

	_, err := cache.Put(ctx, "k1", &storage.CachedResponse{StatusCode: 201})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, _ := cache.Get(ctx, "k1")
		return got == nil
	}, 2*time.Second, 20*time.Millisecond)
}
