package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nqdhocai/ovira/internal/snapshot"
)

// SnapshotGenerator defines the interface for generating vault snapshots.
type SnapshotGenerator interface {
	Generate(ctx context.Context, assetID string, date time.Time) (snapshot.VaultRecord, error)
}

// AssetLister exposes the set of assets with managed vaults.
type AssetLister interface {
	ManagedAssets(ctx context.Context) ([]string, error)
}

// AfterSnapshotHook is called after each successful snapshot generation.
type AfterSnapshotHook interface {
	Export(ctx context.Context, assetID string) error
}

// SnapshotWorker periodically captures a snapshot of every managed vault.
type SnapshotWorker struct {
	generator SnapshotGenerator
	assets    AssetLister
	interval  time.Duration
	hook      AfterSnapshotHook // optional
}

// NewSnapshotWorker creates a new SnapshotWorker with an optional
// post-generation hook.
func NewSnapshotWorker(generator SnapshotGenerator, assets AssetLister, interval time.Duration, hook AfterSnapshotHook) *SnapshotWorker {
	return &SnapshotWorker{
		generator: generator,
		assets:    assets,
		interval:  interval,
		hook:      hook,
	}
}

// runHook calls the post-generation hook if one is configured.
func (w *SnapshotWorker) runHook(ctx context.Context, assetID string) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, assetID); err != nil {
		slog.Error("SnapshotWorker: export hook failed", "asset", assetID, "error", err)
	} else {
		slog.Info("SnapshotWorker: export hook completed", "asset", assetID)
	}
}

// utcDate returns the current date normalized to midnight UTC.
func utcDate() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// generateAll captures a snapshot dated today for every managed vault.
func (w *SnapshotWorker) generateAll(ctx context.Context) {
	assets, err := w.assets.ManagedAssets(ctx)
	if err != nil {
		slog.Error("SnapshotWorker: listing managed assets failed", "error", err)
		return
	}
	date := utcDate()
	for _, asset := range assets {
		if _, err := w.generator.Generate(ctx, asset, date); err != nil {
			slog.Error("SnapshotWorker: generation failed", "asset", asset, "error", err)
			continue
		}
		slog.Info("SnapshotWorker: generation completed", "asset", asset)
		w.runHook(ctx, asset)
	}
}

// Run starts the snapshot worker loop. It blocks until the context is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	slog.Info("SnapshotWorker: starting")

	// Generate immediately on startup
	w.generateAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SnapshotWorker: shutting down")
			return
		case <-ticker.C:
			w.generateAll(ctx)
		}
	}
}
