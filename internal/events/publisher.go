package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/careloop/visit-media-service/internal/types"
)

// Publisher interface for publishing domain events
type Publisher interface {
	PublishUploadConfirmed(recordID string, kind types.Kind, storageKey, visitID string, fileSize int64, confirmedBy string) error
	PublishRecordDeleted(recordID string, kind types.Kind, storageKey string) error
}

// Channel carries every event; downstream processors (transcription, image
// analysis) subscribe and filter by event type.
const Channel = "visit-media:events"

// RedisPublisher publishes events on a Redis pub/sub channel.
type RedisPublisher struct {
	redis *redis.Client
}

// NewRedisPublisher creates a new redis-backed event publisher
func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		redis: redisClient,
	}
}

// PublishUploadConfirmed announces that a pending upload has been finalized.
func (p *RedisPublisher) PublishUploadConfirmed(recordID string, kind types.Kind, storageKey, visitID string, fileSize int64, confirmedBy string) error {
	eventData := &types.UploadConfirmedEvent{
		RecordID:    recordID,
		Kind:        kind,
		StorageKey:  storageKey,
		VisitID:     visitID,
		FileSize:    fileSize,
		ConfirmedBy: confirmedBy,
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}

	return p.publish(types.NewEvent(types.EventUploadConfirmed, eventData))
}

// PublishRecordDeleted announces that a record's metadata has been removed.
func (p *RedisPublisher) PublishRecordDeleted(recordID string, kind types.Kind, storageKey string) error {
	eventData := &types.RecordDeletedEvent{
		RecordID:   recordID,
		Kind:       kind,
		StorageKey: storageKey,
		DeletedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	return p.publish(types.NewEvent(types.EventRecordDeleted, eventData))
}

func (p *RedisPublisher) publish(event *types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.redis.Publish(context.Background(), Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
