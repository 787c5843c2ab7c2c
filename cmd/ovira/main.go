package main

import (
	"context"
	"embed"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nqdhocai/ovira/internal/api"
	"github.com/nqdhocai/ovira/internal/config"
	"github.com/nqdhocai/ovira/internal/database"
	"github.com/nqdhocai/ovira/internal/export"
	"github.com/nqdhocai/ovira/internal/snapshot"
	"github.com/nqdhocai/ovira/internal/vault"
	"github.com/nqdhocai/ovira/internal/worker"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// Connect to database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Run migrations
	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		log.Fatalf("Failed to create migrations sub-fs: %v", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Accounting engine
	vaultRepo := vault.NewPgRepository(pool)
	vaultSvc := vault.NewService(vaultRepo, cfg.FeeAccrualInterval)

	// Snapshot service
	snapshotRepo := snapshot.NewPgRepository(pool)
	snapshotSvc := snapshot.NewService(vaultSvc, snapshotRepo)

	// Export pipeline: optional destinations, assembled from config
	var writers []export.SheetWriter
	if cfg.SheetsSpreadsheetID != "" && cfg.SheetsCredentialsJSON != "" {
		sheetsWriter, err := export.NewSheetsWriter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsCredentialsJSON)
		if err != nil {
			log.Fatalf("Failed to create sheets writer: %v", err)
		}
		writers = append(writers, sheetsWriter)
	}
	if cfg.XLSXExportDir != "" {
		writers = append(writers, export.NewXLSXWriter(cfg.XLSXExportDir))
	}

	var hook worker.AfterSnapshotHook
	if len(writers) > 0 {
		hook = export.NewService(snapshotRepo, writers...)
	}

	// Start workers
	if cfg.FeeAdmin != "" {
		feeWorker := worker.NewFeeWorker(vaultSvc, cfg.FeeAdmin, cfg.FeeWorkerInterval)
		go feeWorker.Run(ctx)
	} else {
		slog.Warn("FEE_ADMIN not set, fee accrual worker disabled")
	}

	snapshotWorker := worker.NewSnapshotWorker(snapshotSvc, vaultSvc, cfg.SnapshotWorkerInterval, hook)
	go snapshotWorker.Run(ctx)

	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY not set, admin endpoints are unprotected")
	}

	// Start HTTP server
	srv := api.NewServer(cfg.HTTPPort, vaultSvc, vaultRepo, snapshotSvc, cfg.AdminAPIKey)

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
