package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

// setupTestRedis creates an in-memory Redis server for testing
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		DB:   0,
	})

	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}

	return redisClient, cleanup
}

type countingSigner struct {
	calls int
}

func (s *countingSigner) PresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	s.calls++
	return "https://store.local/signed/" + objectKey, nil
}

func TestDownloadURLCachesSignedURL(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	signer := &countingSigner{}
	c := NewDownloadCache(signer, redisClient)
	ctx := context.Background()

	url1, exp1, err := c.DownloadURL(ctx, "photos/v1/a.jpg", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	url2, exp2, err := c.DownloadURL(ctx, "photos/v1/a.jpg", time.Hour)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if url1 != url2 || exp1 != exp2 {
		t.Fatalf("Expected cached URL, got %q/%d and %q/%d", url1, exp1, url2, exp2)
	}
	if signer.calls != 1 {
		t.Fatalf("Expected 1 signer call, got %d", signer.calls)
	}
}

// Different requested lifetimes must not share a cache entry.
func TestDownloadURLSeparateExpiries(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	signer := &countingSigner{}
	c := NewDownloadCache(signer, redisClient)
	ctx := context.Background()

	if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", time.Hour); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", 30*time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if signer.calls != 2 {
		t.Fatalf("Expected 2 signer calls, got %d", signer.calls)
	}
}

// Short lifetimes are not worth caching once the safety margin would eat
// the whole TTL.
func TestDownloadURLShortExpiryNotCached(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	signer := &countingSigner{}
	c := NewDownloadCache(signer, redisClient)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", 30*time.Second); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if signer.calls != 2 {
		t.Fatalf("Expected every call to re-sign, got %d calls", signer.calls)
	}
}

// Invalidation drops every cached lifetime of the object and nothing else.
func TestInvalidate(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	signer := &countingSigner{}
	c := NewDownloadCache(signer, redisClient)
	ctx := context.Background()

	if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", time.Hour); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", 30*time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, err := c.DownloadURL(ctx, "photos/v1/b.jpg", time.Hour); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := c.Invalidate(ctx, "photos/v1/a.jpg"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", time.Hour); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, err := c.DownloadURL(ctx, "photos/v1/a.jpg", 30*time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if signer.calls != 5 {
		t.Fatalf("Expected every lifetime of the object re-signed, got %d calls", signer.calls)
	}

	if _, _, err := c.DownloadURL(ctx, "photos/v1/b.jpg", time.Hour); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if signer.calls != 5 {
		t.Fatalf("Other objects must stay cached, got %d calls", signer.calls)
	}
}
