package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies which category a media record belongs to. Audio and photo
// records share one lifecycle and one storage-key namespace but carry
// different kind-specific fields.
type Kind string

const (
	KindAudio Kind = "audio"
	KindPhoto Kind = "photo"
)

// Folder returns the top-level object-store prefix for the kind.
func (k Kind) Folder() string {
	if k == KindAudio {
		return "audio-recordings"
	}
	return "photos"
}

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// AccessLevel is an advisory label carried on every record. The service
// records it but does not enforce it.
type AccessLevel string

const (
	AccessPrivate           AccessLevel = "private"
	AccessStaffOnly         AccessLevel = "staff_only"
	AccessPatientAccessible AccessLevel = "patient_accessible"
	AccessPublic            AccessLevel = "public"
)

type RetentionPolicy string

const (
	Retention7Days     RetentionPolicy = "7_days"
	Retention30Days    RetentionPolicy = "30_days"
	Retention1Year     RetentionPolicy = "1_year"
	Retention7Years    RetentionPolicy = "7_years"
	RetentionPermanent RetentionPolicy = "permanent"
)

// ViewEvent is one entry in a record's viewer history.
type ViewEvent struct {
	ViewerID string    `bson:"viewer_id" json:"viewer_id"`
	ViewedAt time.Time `bson:"viewed_at" json:"viewed_at"`
}

// UploadRecord holds the fields shared by both record kinds. It is embedded
// inline in AudioRecord and PhotoRecord so both persist as flat documents.
type UploadRecord struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StorageKey        string             `bson:"storage_key" json:"storage_key"`
	OriginalFileName  string             `bson:"original_file_name" json:"original_file_name"`
	GeneratedFileName string             `bson:"generated_file_name" json:"generated_file_name"`
	FileSize          int64              `bson:"file_size" json:"file_size"`
	MimeType          string             `bson:"mime_type" json:"mime_type"`
	VisitID           string             `bson:"visit_id" json:"visit_id"`
	PatientID         string             `bson:"patient_id" json:"patient_id"`
	StaffID           string             `bson:"staff_id,omitempty" json:"staff_id,omitempty"`
	ProcessingStatus  ProcessingStatus   `bson:"processing_status" json:"processing_status"`
	AccessLevel       AccessLevel        `bson:"access_level" json:"access_level"`
	UploadedBy        string             `bson:"uploaded_by,omitempty" json:"uploaded_by,omitempty"`
	UploadedAt        time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	LastAccessedAt    *time.Time         `bson:"last_accessed_at,omitempty" json:"last_accessed_at,omitempty"`
	AccessCount       int64              `bson:"access_count" json:"access_count"`
	RetentionPolicy   RetentionPolicy    `bson:"retention_policy" json:"retention_policy"`
	ExpiresAt         *time.Time         `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	Tags              []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
}

// AudioRecord is the metadata document for one uploaded visit recording.
type AudioRecord struct {
	UploadRecord    `bson:",inline"`
	Duration        float64                `bson:"duration" json:"duration"`
	RecordingType   string                 `bson:"recording_type,omitempty" json:"recording_type,omitempty"`
	RecordingSource string                 `bson:"recording_source,omitempty" json:"recording_source,omitempty"`
	Transcription   map[string]interface{} `bson:"transcription,omitempty" json:"transcription,omitempty"`
	ViewLog         []ViewEvent            `bson:"view_log,omitempty" json:"view_log,omitempty"`
}

// PhotoRecord is the metadata document for one uploaded visit photo.
type PhotoRecord struct {
	UploadRecord `bson:",inline"`
	Width        int                    `bson:"width" json:"width"`
	Height       int                    `bson:"height" json:"height"`
	PhotoType    string                 `bson:"photo_type,omitempty" json:"photo_type,omitempty"`
	Analysis     map[string]interface{} `bson:"analysis,omitempty" json:"analysis,omitempty"`
	ViewLog      []ViewEvent            `bson:"view_log,omitempty" json:"view_log,omitempty"`
}

// PresignUploadRequest asks for a presigned upload URL and a pending record.
type PresignUploadRequest struct {
	FileName        string   `validate:"required" json:"file_name"`
	ContentType     string   `validate:"required" json:"content_type"`
	VisitID         string   `validate:"required" json:"visit_id"`
	PatientID       string   `validate:"required" json:"patient_id"`
	AccessLevel     string   `validate:"omitempty,oneof=private staff_only patient_accessible public" json:"access_level"`
	RetentionPolicy string   `validate:"omitempty,oneof=7_days 30_days 1_year 7_years permanent" json:"retention_policy"`
	Description     string   `json:"description"`
	Tags            []string `json:"tags"`
}

// ConfirmUploadRequest finalizes a pending record after the client has
// pushed the bytes to the object store.
type ConfirmUploadRequest struct {
	StorageKey string   `validate:"required" json:"storage_key"`
	FileSize   int64    `validate:"required,min=1" json:"file_size"`
	Duration   *float64 `validate:"omitempty,min=0" json:"duration,omitempty"`
	Width      *int     `validate:"omitempty,min=1" json:"width,omitempty"`
	Height     *int     `validate:"omitempty,min=1" json:"height,omitempty"`
}

// UpdateMetadataRequest carries the non-lifecycle fields a caller may edit.
// Lifecycle fields (status, file size, storage key, expiry) are never
// touched through this path.
type UpdateMetadataRequest struct {
	Description    *string  `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	AccessLevel    *string  `validate:"omitempty,oneof=private staff_only patient_accessible public" json:"access_level,omitempty"`
	Classification *string  `json:"classification,omitempty"`
}

// PresignUploadResponse is returned to the client so it can PUT the file
// bytes directly to the object store and confirm afterwards.
type PresignUploadResponse struct {
	UploadURL   string     `json:"upload_url"`
	PublicURL   string     `json:"public_url"`
	StorageKey  string     `json:"storage_key"`
	RecordID    string     `json:"record_id"`
	Kind        Kind       `json:"kind"`
	MaxFileSize int64      `json:"max_file_size"`
	URLExpires  int64      `json:"url_expires_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type DownloadURLResponse struct {
	StorageKey  string `json:"storage_key"`
	DownloadURL string `json:"download_url"`
	ExpiresAt   int64  `json:"expires_at"`
}
