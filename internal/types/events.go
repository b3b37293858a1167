package types

import "time"

// EventType identifies a domain event published for downstream processors.
type EventType string

const (
	EventUploadConfirmed EventType = "upload.confirmed"
	EventRecordDeleted   EventType = "record.deleted"
)

// Event is the envelope published on the events channel. Downstream
// pipelines (transcription, image analysis) consume these to pick up newly
// confirmed uploads.
type Event struct {
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// UploadConfirmedEvent is emitted when a pending upload is finalized.
type UploadConfirmedEvent struct {
	RecordID    string `json:"record_id"`
	Kind        Kind   `json:"kind"`
	StorageKey  string `json:"storage_key"`
	VisitID     string `json:"visit_id"`
	FileSize    int64  `json:"file_size"`
	ConfirmedBy string `json:"confirmed_by"`
	ConfirmedAt string `json:"confirmed_at"`
}

// RecordDeletedEvent is emitted after a record's metadata has been removed.
type RecordDeletedEvent struct {
	RecordID   string `json:"record_id"`
	Kind       Kind   `json:"kind"`
	StorageKey string `json:"storage_key"`
	DeletedAt  string `json:"deleted_at"`
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
