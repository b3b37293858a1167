package storage

import (
	"context"
	"errors"
	"time"

	"github.com/careloop/visit-media-service/internal/types"
)

var (
	// ErrNotFound is returned when no record matches the given id or
	// storage key in the addressed kind-store.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when a create collides with an existing
	// storage key. Callers should retry with a fresh key rather than
	// overwrite.
	ErrDuplicateKey = errors.New("storage key already exists")
)

// ConfirmUpdate carries the fields written when a pending upload is
// finalized. Kind-specific fields are applied only when non-nil.
type ConfirmUpdate struct {
	FileSize    int64
	ConfirmedBy string
	ConfirmedAt time.Time
	Duration    *float64 // audio only
	Width       *int     // photo only
	Height      *int     // photo only
}

// MetadataUpdate carries the non-lifecycle fields a caller may edit. Nil
// pointers leave the stored value untouched. Classification maps to
// recording_type for audio records and photo_type for photo records.
type MetadataUpdate struct {
	Description    *string
	Tags           []string
	AccessLevel    *types.AccessLevel
	Classification *string
}

// RecordStore is the durable mapping from storage key to metadata record,
// split into two parallel kind-stores with a shared lifecycle. Every
// mutation is a single atomic update on one document; implementations must
// never read-modify-write.
type RecordStore interface {
	CreateAudio(ctx context.Context, rec *types.AudioRecord) (string, error)
	CreatePhoto(ctx context.Context, rec *types.PhotoRecord) (string, error)

	FindAudioByID(ctx context.Context, id string) (*types.AudioRecord, error)
	FindPhotoByID(ctx context.Context, id string) (*types.PhotoRecord, error)

	// ConfirmAudio/ConfirmPhoto atomically transition the record with the
	// given storage key to completed and apply upd, returning the updated
	// document. ErrNotFound means the key is absent from that kind-store.
	ConfirmAudio(ctx context.Context, storageKey string, upd ConfirmUpdate) (*types.AudioRecord, error)
	ConfirmPhoto(ctx context.Context, storageKey string, upd ConfirmUpdate) (*types.PhotoRecord, error)

	// TouchAudioAccess/TouchPhotoAccess atomically increment the access
	// count, stamp last_accessed_at and, when viewerID is non-empty, append
	// to the view log. The post-update document is returned.
	TouchAudioAccess(ctx context.Context, id, viewerID string, at time.Time) (*types.AudioRecord, error)
	TouchPhotoAccess(ctx context.Context, id, viewerID string, at time.Time) (*types.PhotoRecord, error)

	UpdateAudioMetadata(ctx context.Context, id string, upd MetadataUpdate) (*types.AudioRecord, error)
	UpdatePhotoMetadata(ctx context.Context, id string, upd MetadataUpdate) (*types.PhotoRecord, error)

	DeleteAudio(ctx context.Context, id string) error
	DeletePhoto(ctx context.Context, id string) error

	ListAudioByVisit(ctx context.Context, visitID string) ([]types.AudioRecord, error)
	ListPhotosByVisit(ctx context.Context, visitID string) ([]types.PhotoRecord, error)
	ListAudioByPatient(ctx context.Context, patientID string) ([]types.AudioRecord, error)
	ListPhotosByPatient(ctx context.Context, patientID string) ([]types.PhotoRecord, error)

	// ListStalePending returns records of both kinds still pending whose
	// creation predates the cutoff. Used by the abandoned-upload reaper;
	// retention expiry itself is handled by the store's TTL mechanism.
	ListStalePendingAudio(ctx context.Context, before time.Time) ([]types.AudioRecord, error)
	ListStalePendingPhotos(ctx context.Context, before time.Time) ([]types.PhotoRecord, error)
}
