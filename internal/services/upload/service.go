// Package upload drives each record through its lifecycle: presign issuance
// creates a pending record, confirmation finalizes it, every read tracks an
// access, and deletion removes object then metadata.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/careloop/visit-media-service/internal/config"
	"github.com/careloop/visit-media-service/internal/events"
	"github.com/careloop/visit-media-service/internal/retention"
	"github.com/careloop/visit-media-service/internal/storage"
	"github.com/careloop/visit-media-service/internal/types"
)

// keyAttempts bounds how often issuance retries with a fresh key after a
// storage-key collision before giving up.
const keyAttempts = 3

// objectOpTimeout bounds object-store round-trips (delete, stat). Presign
// calls sign locally and need no bound.
const objectOpTimeout = 10 * time.Second

// Signer is the slice of the object-store service the controller needs.
type Signer interface {
	ValidateContentType(contentType string) (types.Kind, bool)
	GenerateObjectKey(kind types.Kind, visitID, fileName string, now time.Time) (string, error)
	PresignedUploadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	PublicURL(objectKey string) string
	DeleteObject(ctx context.Context, objectKey string) error
}

// DownloadURLProvider mints (or serves a cached) presigned download URL and
// the unix timestamp at which it expires.
type DownloadURLProvider interface {
	DownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, int64, error)
	Invalidate(ctx context.Context, objectKey string) error
}

// Service is the upload lifecycle controller.
type Service struct {
	store     storage.RecordStore
	signer    Signer
	downloads DownloadURLProvider
	publisher events.Publisher
	config    *config.Media
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new upload lifecycle controller.
func NewService(store storage.RecordStore, signer Signer, downloads DownloadURLProvider, publisher events.Publisher, cfg *config.Media, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		signer:    signer,
		downloads: downloads,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// IssueUpload validates the request, creates a pending record of the
// resolved kind and returns a presigned upload URL. This is the only
// operation that creates records.
func (s *Service) IssueUpload(ctx context.Context, req types.PresignUploadRequest, staffID string) (*types.PresignUploadResponse, error) {
	kind, allowed := s.signer.ValidateContentType(req.ContentType)
	if !allowed {
		return nil, fmt.Errorf("%w: content type %q is not allowed", ErrValidation, req.ContentType)
	}

	now := s.now()

	policy := types.RetentionPolicy(req.RetentionPolicy)
	if policy == "" {
		policy = types.RetentionPolicy(s.config.DefaultRetention)
	}
	expiresAt, err := retention.ResolveExpiration(policy, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	accessLevel := types.AccessLevel(req.AccessLevel)
	if accessLevel == "" {
		accessLevel = types.AccessPrivate
	}

	uploadTTL := time.Duration(s.config.UploadURLTTL) * time.Second

	// A key collision means another upload of the same kind claimed the
	// same visit+timestamp+suffix; regenerate and try again.
	for attempt := 0; attempt < keyAttempts; attempt++ {
		storageKey, err := s.signer.GenerateObjectKey(kind, req.VisitID, req.FileName, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}

		uploadURL, err := s.signer.PresignedUploadURL(ctx, storageKey, uploadTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		common := types.UploadRecord{
			StorageKey:        storageKey,
			OriginalFileName:  req.FileName,
			GeneratedFileName: path.Base(storageKey),
			FileSize:          0,
			MimeType:          req.ContentType,
			VisitID:           req.VisitID,
			PatientID:         req.PatientID,
			StaffID:           staffID,
			ProcessingStatus:  types.StatusPending,
			AccessLevel:       accessLevel,
			UploadedAt:        now,
			RetentionPolicy:   policy,
			ExpiresAt:         expiresAt,
			Tags:              req.Tags,
			Description:       req.Description,
		}

		var recordID string
		if kind == types.KindAudio {
			recordID, err = s.store.CreateAudio(ctx, &types.AudioRecord{UploadRecord: common})
		} else {
			recordID, err = s.store.CreatePhoto(ctx, &types.PhotoRecord{UploadRecord: common})
		}
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.logger.Warn("storage key collision, regenerating",
				"storage_key", storageKey,
				"attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}

		return &types.PresignUploadResponse{
			UploadURL:   uploadURL,
			PublicURL:   s.signer.PublicURL(storageKey),
			StorageKey:  storageKey,
			RecordID:    recordID,
			Kind:        kind,
			MaxFileSize: s.config.MaxFileSize,
			URLExpires:  now.Add(uploadTTL).Unix(),
			ExpiresAt:   expiresAt,
		}, nil
	}

	return nil, fmt.Errorf("%w: could not allocate a unique storage key", ErrUpstream)
}

// ConfirmResult reports which kind-store the key resolved to; exactly one
// of Audio and Photo is set.
type ConfirmResult struct {
	Kind  types.Kind
	Audio *types.AudioRecord
	Photo *types.PhotoRecord
}

// Confirm finalizes the pending record bound to the storage key. The key is
// probed in the audio store first, then the photo store; a miss in both is
// a terminal not-found. Re-confirming an already-completed record re-applies
// the update (last-write-wins).
func (s *Service) Confirm(ctx context.Context, req types.ConfirmUploadRequest, confirmedBy string) (*ConfirmResult, error) {
	if s.config.MaxFileSize > 0 && req.FileSize > s.config.MaxFileSize {
		return nil, fmt.Errorf("%w: file size %d exceeds the %d byte limit", ErrValidation, req.FileSize, s.config.MaxFileSize)
	}

	now := s.now()

	audioUpd := storage.ConfirmUpdate{
		FileSize:    req.FileSize,
		ConfirmedBy: confirmedBy,
		ConfirmedAt: now,
		Duration:    req.Duration,
	}

	rec, err := s.store.ConfirmAudio(ctx, req.StorageKey, audioUpd)
	if err == nil {
		s.publishConfirmed(rec.ID.Hex(), types.KindAudio, rec.StorageKey, rec.VisitID, rec.FileSize, confirmedBy)
		return &ConfirmResult{Kind: types.KindAudio, Audio: rec}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	photoUpd := storage.ConfirmUpdate{
		FileSize:    req.FileSize,
		ConfirmedBy: confirmedBy,
		ConfirmedAt: now,
		Width:       req.Width,
		Height:      req.Height,
	}

	photo, err := s.store.ConfirmPhoto(ctx, req.StorageKey, photoUpd)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("no record for storage key %q: %w", req.StorageKey, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	s.publishConfirmed(photo.ID.Hex(), types.KindPhoto, photo.StorageKey, photo.VisitID, photo.FileSize, confirmedBy)
	return &ConfirmResult{Kind: types.KindPhoto, Photo: photo}, nil
}

func (s *Service) publishConfirmed(recordID string, kind types.Kind, storageKey, visitID string, fileSize int64, confirmedBy string) {
	if err := s.publisher.PublishUploadConfirmed(recordID, kind, storageKey, visitID, fileSize, confirmedBy); err != nil {
		s.logger.Error("failed to publish upload confirmed event",
			"record_id", recordID,
			"error", err.Error())
	}
}

// GetAudio returns the record and tracks the access in the same atomic
// update, so the returned access count already includes this read.
func (s *Service) GetAudio(ctx context.Context, id, viewerID string) (*types.AudioRecord, error) {
	rec, err := s.store.TouchAudioAccess(ctx, id, viewerID, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return rec, nil
}

// GetPhoto returns the record and tracks the access, as GetAudio does.
func (s *Service) GetPhoto(ctx context.Context, id, viewerID string) (*types.PhotoRecord, error) {
	rec, err := s.store.TouchPhotoAccess(ctx, id, viewerID, s.now())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return rec, nil
}

// IssueDownload mints a presigned download URL for the record and tracks
// the access. expirySeconds <= 0 selects the configured default.
func (s *Service) IssueDownload(ctx context.Context, kind types.Kind, id, viewerID string, expirySeconds int) (*types.DownloadURLResponse, error) {
	var storageKey string

	switch kind {
	case types.KindAudio:
		rec, err := s.store.TouchAudioAccess(ctx, id, viewerID, s.now())
		if err != nil {
			return nil, s.wrapStoreErr(err)
		}
		storageKey = rec.StorageKey
	case types.KindPhoto:
		rec, err := s.store.TouchPhotoAccess(ctx, id, viewerID, s.now())
		if err != nil {
			return nil, s.wrapStoreErr(err)
		}
		storageKey = rec.StorageKey
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}

	expiry := time.Duration(expirySeconds) * time.Second
	if expirySeconds <= 0 {
		expiry = time.Duration(s.config.DownloadURLTTL) * time.Second
	}

	url, expiresAt, err := s.downloads.DownloadURL(ctx, storageKey, expiry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &types.DownloadURLResponse{
		StorageKey:  storageKey,
		DownloadURL: url,
		ExpiresAt:   expiresAt,
	}, nil
}

// UpdateAudioMetadata edits non-lifecycle fields of an audio record.
func (s *Service) UpdateAudioMetadata(ctx context.Context, id string, req types.UpdateMetadataRequest) (*types.AudioRecord, error) {
	rec, err := s.store.UpdateAudioMetadata(ctx, id, metadataUpdate(req))
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return rec, nil
}

// UpdatePhotoMetadata edits non-lifecycle fields of a photo record.
func (s *Service) UpdatePhotoMetadata(ctx context.Context, id string, req types.UpdateMetadataRequest) (*types.PhotoRecord, error) {
	rec, err := s.store.UpdatePhotoMetadata(ctx, id, metadataUpdate(req))
	if err != nil {
		return nil, s.wrapStoreErr(err)
	}
	return rec, nil
}

func metadataUpdate(req types.UpdateMetadataRequest) storage.MetadataUpdate {
	upd := storage.MetadataUpdate{
		Description:    req.Description,
		Tags:           req.Tags,
		Classification: req.Classification,
	}
	if req.AccessLevel != nil {
		level := types.AccessLevel(*req.AccessLevel)
		upd.AccessLevel = &level
	}
	return upd
}

// DeleteAudio removes the stored object best-effort, then the metadata
// record. An object-store failure is logged and swallowed: the metadata
// record is the system of record, and an orphaned object is acceptable
// where an orphaned record pointing at nothing is not.
func (s *Service) DeleteAudio(ctx context.Context, id string) error {
	rec, err := s.store.FindAudioByID(ctx, id)
	if err != nil {
		return s.wrapStoreErr(err)
	}

	s.deleteObject(ctx, rec.StorageKey)

	if err := s.store.DeleteAudio(ctx, id); err != nil {
		return s.wrapStoreErr(err)
	}

	s.publishDeleted(id, types.KindAudio, rec.StorageKey)
	return nil
}

// DeletePhoto removes a photo record with the same semantics as DeleteAudio.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	rec, err := s.store.FindPhotoByID(ctx, id)
	if err != nil {
		return s.wrapStoreErr(err)
	}

	s.deleteObject(ctx, rec.StorageKey)

	if err := s.store.DeletePhoto(ctx, id); err != nil {
		return s.wrapStoreErr(err)
	}

	s.publishDeleted(id, types.KindPhoto, rec.StorageKey)
	return nil
}

func (s *Service) deleteObject(ctx context.Context, storageKey string) {
	ctx, cancel := context.WithTimeout(ctx, objectOpTimeout)
	defer cancel()

	if err := s.signer.DeleteObject(ctx, storageKey); err != nil {
		s.logger.Error("failed to delete object, metadata record will still be removed",
			"storage_key", storageKey,
			"error", err.Error())
	}
	if err := s.downloads.Invalidate(ctx, storageKey); err != nil {
		s.logger.Warn("failed to invalidate cached download URLs",
			"storage_key", storageKey,
			"error", err.Error())
	}
}

func (s *Service) publishDeleted(recordID string, kind types.Kind, storageKey string) {
	if err := s.publisher.PublishRecordDeleted(recordID, kind, storageKey); err != nil {
		s.logger.Error("failed to publish record deleted event",
			"record_id", recordID,
			"error", err.Error())
	}
}

// VisitMedia bundles both kinds of records attached to one visit.
type VisitMedia struct {
	Audio  []types.AudioRecord `json:"audio"`
	Photos []types.PhotoRecord `json:"photos"`
}

// ListByVisit returns every record for the visit. List queries do not
// track accesses.
func (s *Service) ListByVisit(ctx context.Context, visitID string) (*VisitMedia, error) {
	audio, err := s.store.ListAudioByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	photos, err := s.store.ListPhotosByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &VisitMedia{Audio: audio, Photos: photos}, nil
}

// ListByPatient returns every record across the patient's visits. List
// queries do not track accesses.
func (s *Service) ListByPatient(ctx context.Context, patientID string) (*VisitMedia, error) {
	audio, err := s.store.ListAudioByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	photos, err := s.store.ListPhotosByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &VisitMedia{Audio: audio, Photos: photos}, nil
}

func (s *Service) wrapStoreErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
