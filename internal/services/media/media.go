package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/careloop/visit-media-service/internal/config"
	"github.com/careloop/visit-media-service/internal/types"
)

// Service wraps the object store's signing capability: it derives storage
// keys and mints time-limited upload/download URLs. It never moves file
// bytes itself.
type Service struct {
	client     *minio.Client
	bucketName string
	config     *config.Media
	useSSL     bool
}

// NewService creates a new media service instance
func NewService(cfg *config.Config) (*Service, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKeyID, cfg.MinIO.SecretAccessKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	service := &Service{
		client:     client,
		bucketName: cfg.MinIO.BucketName,
		config:     &cfg.Media,
		useSSL:     cfg.MinIO.UseSSL,
	}

	if err := service.ensureBucket(); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return service, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Service) ensureBucket() error {
	ctx := context.Background()

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ValidateContentType classifies the content type as audio or photo and
// reports whether it is on the configured allow-list for that kind.
func (s *Service) ValidateContentType(contentType string) (types.Kind, bool) {
	switch {
	case strings.HasPrefix(contentType, "audio/"):
		for _, allowed := range s.config.AllowedAudioTypes {
			if contentType == allowed {
				return types.KindAudio, true
			}
		}
		return types.KindAudio, false
	case strings.HasPrefix(contentType, "image/"):
		for _, allowed := range s.config.AllowedPhotoTypes {
			if contentType == allowed {
				return types.KindPhoto, true
			}
		}
		return types.KindPhoto, false
	default:
		return "", false
	}
}

// GenerateObjectKey derives the storage key for an upload:
//
//	{kindFolder}/{visitID}/visit_{kind}_{YYYYMMDD}_{HHMMSS}_{suffix}.{ext}
//
// The key is partitioned by kind and visit so listing-by-prefix works, and
// the timestamp keeps keys sortable and legible. The 8-hex suffix closes
// the same-second collision window between two uploads of the same kind for
// one visit. A file name without an extension is rejected.
func GenerateObjectKey(kind types.Kind, visitID, fileName string, now time.Time) (string, error) {
	ext := filepath.Ext(fileName)
	if ext == "" || ext == "." {
		return "", fmt.Errorf("file name %q has no extension", fileName)
	}
	ext = strings.TrimPrefix(ext, ".")

	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	ts := now.UTC()

	return fmt.Sprintf("%s/%s/visit_%s_%s_%s_%s.%s",
		kind.Folder(), visitID, kind,
		ts.Format("20060102"), ts.Format("150405"),
		suffix, ext), nil
}

func (s *Service) GenerateObjectKey(kind types.Kind, visitID, fileName string, now time.Time) (string, error) {
	return GenerateObjectKey(kind, visitID, fileName, now)
}

// PresignedUploadURL mints a time-limited URL the client PUTs the file
// bytes to. The object stays private; nothing about presigning grants
// public read. No network round-trip is made to check the key.
func (s *Service) PresignedUploadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Duration(s.config.UploadURLTTL) * time.Second
	}

	presignedURL, err := s.client.PresignedPutObject(ctx, s.bucketName, objectKey, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	return presignedURL.String(), nil
}

// PresignedDownloadURL mints a time-limited URL for fetching the object.
func (s *Service) PresignedDownloadURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Duration(s.config.DownloadURLTTL) * time.Second
	}

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return presignedURL.String(), nil
}

// PublicURL returns the direct URL for an object. Useful behind a CDN or a
// public-read bucket; for private buckets callers want PresignedDownloadURL.
func (s *Service) PublicURL(objectKey string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}

	endpoint := strings.TrimPrefix(s.client.EndpointURL().String(), scheme+"://")
	return fmt.Sprintf("%s://%s/%s/%s", scheme, endpoint, s.bucketName, objectKey)
}

// DeleteObject removes an object from storage
func (s *Service) DeleteObject(ctx context.Context, objectKey string) error {
	return s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{})
}

// ObjectExists reports whether the object is present in the bucket.
func (s *Service) ObjectExists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}
