package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// URLSigner is the signing capability the cache fronts.
type URLSigner interface {
	PresignedDownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// DownloadCache serves presigned download URLs out of Redis so repeated
// reads of the same object within the URL's lifetime don't re-sign.
type DownloadCache struct {
	signer URLSigner
	redis  *redis.Client
}

// NewDownloadCache creates a new download URL cache
func NewDownloadCache(signer URLSigner, redisClient *redis.Client) *DownloadCache {
	return &DownloadCache{
		signer: signer,
		redis:  redisClient,
	}
}

// Cache key pattern; the requested expiry is part of the key so a URL
// minted for one lifetime is never served for another.
const downloadURLKey = "download_url:%s:%d" // download_url:objectKey:expirySeconds

// expiryMargin is shaved off the cache TTL so a cached URL is always
// dropped before its signature lapses.
const expiryMargin = 60 * time.Second

type cachedURL struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}

// DownloadURL returns a presigned download URL for the object and the unix
// timestamp at which it expires. Cache misses fall through to the signer.
func (c *DownloadCache) DownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, int64, error) {
	key := fmt.Sprintf(downloadURLKey, objectKey, int64(expiry.Seconds()))

	// Try cache first
	cached, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var entry cachedURL
		if err := json.Unmarshal([]byte(cached), &entry); err == nil {
			return entry.URL, entry.ExpiresAt, nil
		}
	}

	// Cache miss - sign a fresh URL
	url, err := c.signer.PresignedDownloadURL(ctx, objectKey, expiry)
	if err != nil {
		return "", 0, err
	}

	entry := cachedURL{
		URL:       url,
		ExpiresAt: time.Now().Add(expiry).Unix(),
	}

	if ttl := expiry - expiryMargin; ttl > 0 {
		data, _ := json.Marshal(entry)
		c.redis.Set(ctx, key, data, ttl)
	}

	return url, entry.ExpiresAt, nil
}

// Invalidate drops every cached URL for the object. Called when the backing
// object is deleted. Keys are walked with SCAN so invalidation never blocks
// the server the way KEYS would.
func (c *DownloadCache) Invalidate(ctx context.Context, objectKey string) error {
	pattern := fmt.Sprintf("download_url:%s:*", objectKey)

	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached URLs: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...).Err()
}
