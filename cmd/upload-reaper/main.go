// The upload reaper removes abandoned uploads: records still pending long
// after their presigned upload window lapsed, where the client never
// confirmed. Retention expiry of completed records is handled by the record
// store's TTL index, not here.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careloop/visit-media-service/internal/config"
	mediaService "github.com/careloop/visit-media-service/internal/services/media"
	"github.com/careloop/visit-media-service/internal/storage"
	"github.com/careloop/visit-media-service/internal/storage/mongo"
	"github.com/careloop/visit-media-service/internal/types"
)

// objectOpTimeout bounds each object-store round-trip so a hung object
// store cannot stall a cleanup sweep.
const objectOpTimeout = 10 * time.Second

type ObjectStore interface {
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

type UploadReaper struct {
	store    storage.RecordStore
	objects  ObjectStore
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewUploadReaper(store storage.RecordStore, objects ObjectStore, interval, maxAge time.Duration) *UploadReaper {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	return &UploadReaper{
		store:    store,
		objects:  objects,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

func (r *UploadReaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("Upload reaper started",
		"interval", r.interval.String(),
		"max_age", r.maxAge.String())

	// Run once immediately on startup
	r.reapAbandonedUploads(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Upload reaper shutting down")
			return
		case <-ticker.C:
			r.reapAbandonedUploads(ctx)
		}
	}
}

func (r *UploadReaper) reapAbandonedUploads(ctx context.Context) {
	startTime := time.Now()
	cutoff := startTime.Add(-r.maxAge)

	r.logger.Info("Starting abandoned upload cleanup")

	count := 0

	audio, err := r.store.ListStalePendingAudio(ctx, cutoff)
	if err != nil {
		r.logger.Error("Failed to list stale pending audio records",
			"error", err.Error())
		return
	}
	for _, rec := range audio {
		if r.reap(ctx, types.KindAudio, rec.ID.Hex(), rec.StorageKey) {
			count++
		}
	}

	photos, err := r.store.ListStalePendingPhotos(ctx, cutoff)
	if err != nil {
		r.logger.Error("Failed to list stale pending photo records",
			"error", err.Error())
		return
	}
	for _, rec := range photos {
		if r.reap(ctx, types.KindPhoto, rec.ID.Hex(), rec.StorageKey) {
			count++
		}
	}

	duration := time.Since(startTime)

	r.logger.Info("Completed abandoned upload cleanup",
		"records_reaped", count,
		"duration_ms", duration.Milliseconds(),
		"duration", duration.String())
}

// reap deletes one abandoned record. A partial object (client started but
// never finished the PUT) may exist; its deletion is best effort, the
// metadata record is removed regardless.
func (r *UploadReaper) reap(ctx context.Context, kind types.Kind, id, storageKey string) bool {
	objCtx, cancel := context.WithTimeout(ctx, objectOpTimeout)
	defer cancel()

	exists, err := r.objects.ObjectExists(objCtx, storageKey)
	if err != nil {
		r.logger.Warn("Failed to check object for abandoned upload",
			"storage_key", storageKey,
			"error", err.Error())
	}
	if exists {
		if err := r.objects.DeleteObject(objCtx, storageKey); err != nil {
			r.logger.Warn("Failed to delete object for abandoned upload",
				"storage_key", storageKey,
				"error", err.Error())
		}
	}

	if kind == types.KindAudio {
		err = r.store.DeleteAudio(ctx, id)
	} else {
		err = r.store.DeletePhoto(ctx, id)
	}
	if err != nil {
		r.logger.Error("Failed to delete abandoned record",
			"record_id", id,
			"error", err.Error())
		return false
	}

	return true
}

func main() {
	// Load config
	cfg := config.MustLoad()

	store, err := mongo.NewMongo(cfg)
	if err != nil {
		log.Fatal("Failed to initialize record store:", err)
	}
	slog.Info("Connected to MongoDB record store")

	signer, err := mediaService.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize object store:", err)
	}

	// Pending records older than 6 hours were never confirmed; their
	// presigned URLs expired long ago.
	reaper := NewUploadReaper(store, signer, 15*time.Minute, 6*time.Hour)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("Received shutdown signal")
		cancel()
	}()

	reaper.Start(ctx)

	slog.Info("Upload reaper stopped")
}
