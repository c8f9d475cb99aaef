package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"docuvault/api/internal/app"
	"docuvault/api/internal/blob"
	"docuvault/api/internal/config"
	"docuvault/api/internal/email"
	"docuvault/api/internal/export"
	"docuvault/api/internal/histrepo"
	"docuvault/api/internal/search"
	"docuvault/api/internal/session"
	"docuvault/api/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
		log.Fatalf("failed to create history dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	history := histrepo.New(cfg.HistoryDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	defer searchService.Close()
	searchService.ReindexAllFromPG(ctx)

	// Refresh tokens live in Redis when configured; the Postgres store
	// implements the same interface as a fallback.
	var sessions app.SessionStore = dataStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	// Document content goes to MinIO when configured, Postgres bytea
	// otherwise.
	var blobs blob.Store = blob.NewPGStore(dataStore)
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		log.Printf("Using MinIO for document content storage")
		minioStore, err := blob.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		blobs = minioStore
	} else {
		log.Printf("Using PostgreSQL for document content storage")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured, password reset emails disabled")
	}

	service := app.New(cfg, dataStore, sessions, history, blobs, searchService, export.NewService(), mailer, logger)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.LicenseSweepCron, func() {
		if _, _, err := service.RunLicenseSweep(context.Background()); err != nil {
			log.Printf("license sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid license sweep schedule %q: %v", cfg.LicenseSweepCron, err)
	}
	if _, err := scheduler.AddFunc(cfg.ArchiveSweepCron, func() {
		if _, err := service.RunArchiveSweep(context.Background()); err != nil {
			log.Printf("archive sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid archive sweep schedule %q: %v", cfg.ArchiveSweepCron, err)
	}
	if cfg.SweepOnStart {
		if _, _, err := service.RunLicenseSweep(ctx); err != nil {
			log.Printf("startup license sweep failed: %v", err)
		}
		if _, err := service.RunArchiveSweep(ctx); err != nil {
			log.Printf("startup archive sweep failed: %v", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("DocuVault API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
