package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"eventsbga/internal/admin"
	"eventsbga/internal/auth"
	"eventsbga/internal/availability"
	"eventsbga/internal/config"
	"eventsbga/internal/db"
	"eventsbga/internal/email"
	"eventsbga/internal/events"
	"eventsbga/internal/identity"
	"eventsbga/internal/logger"
	"eventsbga/internal/server"
	"eventsbga/internal/storage"
)

// @title Eventos BGA API
// @version 1.0
// @description Venue availability, event requests and attendance for the cultural events platform.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	defer logger.Sync()
	logger.Info("Starting eventsbga application")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	verifier, err := newVerifier(cfg.OIDC)
	if err != nil {
		logger.Fatalf("Failed to configure token verification: %v", err)
	}

	var images identity.ImageUploader
	if cfg.AWS.ImagesBucket != "" {
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.ImagesBucket,
			PublicBaseURL:   cfg.AWS.PublicBaseURL,
		})
		if err != nil {
			logger.Fatalf("Failed to configure image storage: %v", err)
		}
		images = s3
	} else {
		logger.Warn("AWS_S3_IMAGES_BUCKET not set, venue image upload disabled")
	}

	emailService := email.New(rdb, cfg.Email)
	go emailService.Start(ctx)
	go reportQueueLength(ctx, emailService)
	logger.Info("Email worker started")

	cache := availability.NewCache(rdb, cfg.Cache.AvailabilityTTL)

	managerService := identity.NewService(identity.NewRepository(database), cache, images)
	availabilityService := availability.NewService(availability.NewRepository(database), managerService, cache)
	eventService := events.NewService(events.NewRepository(database), managerService, availabilityService, emailService, cache)
	adminService := admin.NewService(admin.NewRepository(database), managerService)

	srv := server.New(cfg, verifier, server.Handlers{
		Availability: availability.NewHandler(availabilityService, managerService),
		Managers:     identity.NewHandler(managerService),
		Events:       events.NewHandler(eventService),
		Admin:        admin.NewHandler(adminService),
	}, map[string]server.HealthCheck{
		"postgres": database.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func newVerifier(cfg config.OIDCConfig) (auth.Verifier, error) {
	if cfg.JWKSURL != "" {
		logger.Info("Verifying tokens against JWKS", "issuer", cfg.Issuer, "audience", cfg.Audience)
		return auth.NewJWKSVerifier(cfg.JWKSURL, cfg.Issuer, cfg.Audience, cfg.RoleClaim)
	}
	logger.Warn("OIDC_JWKS_URL not set, verifying tokens with the development secret")
	return auth.NewHMACVerifier(cfg.DevSecret, cfg.Issuer, cfg.Audience, cfg.RoleClaim)
}

func reportQueueLength(ctx context.Context, svc *email.Service) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.QueueLength(ctx)
		}
	}
}
