package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nqdhocai/ovira/internal/domain"
)

// FeeAccruer defines the interface for accruing fees across managed vaults.
type FeeAccruer interface {
	ManagedAssets(ctx context.Context) ([]string, error)
	AccrueFees(ctx context.Context, caller, assetID string) (domain.VaultState, error)
}

// FeeWorker periodically accrues management and performance fees on every
// managed vault on behalf of the admin.
type FeeWorker struct {
	accruer  FeeAccruer
	admin    string
	interval time.Duration
}

// NewFeeWorker creates a new FeeWorker acting as the given admin.
func NewFeeWorker(accruer FeeAccruer, admin string, interval time.Duration) *FeeWorker {
	return &FeeWorker{
		accruer:  accruer,
		admin:    admin,
		interval: interval,
	}
}

// accrueAll runs one accrual pass over every managed vault. Vaults inside
// their minimum accrual interval are skipped quietly.
func (w *FeeWorker) accrueAll(ctx context.Context) {
	assets, err := w.accruer.ManagedAssets(ctx)
	if err != nil {
		slog.Error("FeeWorker: listing managed assets failed", "error", err)
		return
	}
	for _, asset := range assets {
		if _, err := w.accruer.AccrueFees(ctx, w.admin, asset); err != nil {
			if errors.Is(err, domain.ErrFeeAccrualTooSoon) {
				continue
			}
			slog.Error("FeeWorker: accrual failed", "asset", asset, "error", err)
			continue
		}
		slog.Info("FeeWorker: accrual completed", "asset", asset)
	}
}

// Run starts the fee worker loop. It blocks until the context is cancelled.
func (w *FeeWorker) Run(ctx context.Context) {
	slog.Info("FeeWorker: starting")

	// Accrue immediately on startup
	w.accrueAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("FeeWorker: shutting down")
			return
		case <-ticker.C:
			w.accrueAll(ctx)
		}
	}
}
