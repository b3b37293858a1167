package ratelimit

import (
	"context"
	"testing"

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

func TestUploadLimiter_Allow(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	// 5 presign requests per minute
	limiter := NewUploadLimiter(redisClient, 5, 5)

	ctx := context.Background()
	staffID := "staff-1"

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, staffID)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !allowed {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, staffID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("Expected request to be denied after limit reached")
	}

	remaining, err := limiter.Remaining(ctx, staffID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("Expected 0 remaining requests, got %d", remaining)
	}
}

// Each staff member gets an independent bucket.
func TestUploadLimiter_PerStaffBuckets(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter := NewUploadLimiter(redisClient, 2, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if allowed, _ := limiter.Allow(ctx, "staff-1"); !allowed {
			t.Fatalf("Expected staff-1 request %d allowed", i+1)
		}
	}
	if allowed, _ := limiter.Allow(ctx, "staff-1"); allowed {
		t.Fatal("Expected staff-1 to be limited")
	}

	if allowed, err := limiter.Allow(ctx, "staff-2"); err != nil || !allowed {
		t.Fatalf("Expected staff-2 unaffected, allowed=%v err=%v", allowed, err)
	}
}

func TestUploadLimiter_Remaining(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	limiter := NewUploadLimiter(redisClient, 10, 10)

	ctx := context.Background()
	staffID := "staff-3"

	remaining, err := limiter.Remaining(ctx, staffID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 10 {
		t.Fatalf("Expected 10 remaining requests, got %d", remaining)
	}

	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, staffID)
	}

	remaining, err = limiter.Remaining(ctx, staffID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if remaining != 7 {
		t.Fatalf("Expected 7 remaining requests, got %d", remaining)
	}
}
