package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/careloop/visit-media-service/internal/cache"
	"github.com/careloop/visit-media-service/internal/config"
	"github.com/careloop/visit-media-service/internal/events"
	mediaHandlers "github.com/careloop/visit-media-service/internal/http/handlers/media"
	"github.com/careloop/visit-media-service/internal/http/middleware"
	"github.com/careloop/visit-media-service/internal/ratelimit"
	mediaService "github.com/careloop/visit-media-service/internal/services/media"
	"github.com/careloop/visit-media-service/internal/services/upload"
	"github.com/careloop/visit-media-service/internal/storage/mongo"
	"github.com/careloop/visit-media-service/internal/types"
	"github.com/careloop/visit-media-service/internal/utils/response"
)

func main() {
	// load config
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// record store
	store, err := mongo.NewMongo(cfg)
	if err != nil {
		log.Fatal("Failed to initialize record store:", err)
	}
	slog.Info("Connected to MongoDB record store")

	// object store signer
	signer, err := mediaService.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize object store:", err)
	}
	slog.Info("Connected to object store", slog.String("bucket", cfg.MinIO.BucketName))

	// redis: download URL cache, rate limiting, event publishing
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	downloads := cache.NewDownloadCache(signer, redisClient)
	publisher := events.NewRedisPublisher(redisClient)
	limiter := ratelimit.NewUploadLimiter(redisClient, cfg.Media.UploadRateLimit, cfg.Media.UploadRateLimit)

	uploadService := upload.NewService(store, signer, downloads, publisher, &cfg.Media, logger)
	handlers := mediaHandlers.NewMediaHandlers(uploadService)

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	uploadLimit := middleware.UploadRateLimit(limiter, cfg.Media.UploadRateLimit)

	// setup server
	router := http.NewServeMux()

	router.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, response.RequestOK("ok", nil))
	})

	router.Handle("POST /media/uploads", auth(uploadLimit(handlers.PresignUpload())))
	router.Handle("POST /media/uploads/confirm", auth(handlers.ConfirmUpload()))

	router.Handle("GET /media/audio/{id}", auth(handlers.GetAudioRecord()))
	router.Handle("GET /media/audio/{id}/download-url", auth(handlers.DownloadURL(types.KindAudio)))
	router.Handle("PATCH /media/audio/{id}", auth(handlers.UpdateMetadata(types.KindAudio)))
	router.Handle("DELETE /media/audio/{id}", auth(handlers.DeleteRecord(types.KindAudio)))

	router.Handle("GET /media/photos/{id}", auth(handlers.GetPhotoRecord()))
	router.Handle("GET /media/photos/{id}/download-url", auth(handlers.DownloadURL(types.KindPhoto)))
	router.Handle("PATCH /media/photos/{id}", auth(handlers.UpdateMetadata(types.KindPhoto)))
	router.Handle("DELETE /media/photos/{id}", auth(handlers.DeleteRecord(types.KindPhoto)))

	router.Handle("GET /visits/{visitID}/media", auth(handlers.ListVisitMedia()))
	router.Handle("GET /patients/{patientID}/media", auth(handlers.ListPatientMedia()))

	server := http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
	}

	log.Println("server started on", cfg.HTTPServer.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %s", err)
		}
	}()

	<-done

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("failed to gracefully shutdown server", slog.String("error", err.Error()))
		return
	}

	if err := store.Close(ctx); err != nil {
		slog.Error("failed to close record store", slog.String("error", err.Error()))
	}

	slog.Info("Server stopped")
}
