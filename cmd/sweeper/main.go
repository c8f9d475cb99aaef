package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

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
	"docuvault/api/internal/store"
)

var runOnce = flag.Bool("run-once", false, "Run both sweeps once and exit")

func main() {
	flag.Parse()
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

	// Schema migrations are owned by the api binary. The sweeps only
	// touch Postgres, so Redis, MinIO and Meilisearch are not wired here.
	dataStore := store.NewPostgresStore(db)
	index := search.NewService(nil, search.NewPgFTS(db))
	service := app.New(cfg, dataStore, dataStore, histrepo.New(cfg.HistoryDir),
		blob.NewPGStore(dataStore), index, export.NewService(),
		email.NewService(email.Config{}), logger)

	if *runOnce {
		if err := runSweeps(ctx, service); err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.LicenseSweepCron, func() {
		if _, _, err := service.RunLicenseSweep(context.Background()); err != nil {
			log.Printf("license sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid license sweep schedule %q: %v", cfg.LicenseSweepCron, err)
	}
	if _, err := c.AddFunc(cfg.ArchiveSweepCron, func() {
		if _, err := service.RunArchiveSweep(context.Background()); err != nil {
			log.Printf("archive sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid archive sweep schedule %q: %v", cfg.ArchiveSweepCron, err)
	}

	c.Start()
	log.Printf("DocuVault sweeper started (license %s, archive %s)", cfg.LicenseSweepCron, cfg.ArchiveSweepCron)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	stopCtx := c.Stop()
	<-stopCtx.Done()
}

func runSweeps(ctx context.Context, service *app.Service) error {
	expired, checked, err := service.RunLicenseSweep(ctx)
	if err != nil {
		return err
	}
	log.Printf("license sweep: expired %d of %d licenses", expired, checked)

	archived, err := service.RunArchiveSweep(ctx)
	if err != nil {
		return err
	}
	log.Printf("archive sweep: archived %d documents", archived)
	return nil
}
