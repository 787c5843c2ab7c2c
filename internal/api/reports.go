package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nqdhocai/ovira/internal/indicator"
	"github.com/nqdhocai/ovira/internal/snapshot"
)

// ReportHandler provides HTTP endpoints for vault snapshots and indicators.
type ReportHandler struct {
	snapshots *snapshot.Service
}

// NewReportHandler creates a new report handler.
func NewReportHandler(snapshots *snapshot.Service) *ReportHandler {
	return &ReportHandler{snapshots: snapshots}
}

// GetLatestSnapshot handles GET /api/v1/vaults/{asset}/snapshots/latest.
func (h *ReportHandler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.snapshots.GetLatest(r.Context(), r.PathValue("asset"))
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no snapshots found")
			return
		}
		slog.Error("failed to get latest snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSnapshotByDate handles GET /api/v1/vaults/{asset}/snapshots/{date}.
func (h *ReportHandler) GetSnapshotByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.PathValue("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	s, err := h.snapshots.GetByDate(r.Context(), r.PathValue("asset"), date)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found for date")
			return
		}
		slog.Error("failed to get snapshot by date", "date", dateStr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSnapshots handles GET /api/v1/vaults/{asset}/snapshots.
func (h *ReportHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	const maxLimit = 365
	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = min(n, maxLimit)
		}
	}

	snapshots, err := h.snapshots.List(r.Context(), r.PathValue("asset"), limit)
	if err != nil {
		slog.Error("failed to list snapshots", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// GenerateSnapshot handles POST /api/v1/vaults/{asset}/snapshots/generate.
func (h *ReportHandler) GenerateSnapshot(w http.ResponseWriter, r *http.Request) {
	record, err := h.snapshots.Generate(r.Context(), r.PathValue("asset"), time.Now().UTC())
	if err != nil {
		slog.Error("failed to generate snapshot", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate snapshot")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GetIndicators handles GET /api/v1/vaults/{asset}/indicators. Indicators
// are computed over the recent snapshot series, with current values taken
// from the latest point.
func (h *ReportHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	// 31 days covers both yield windows.
	snaps, err := h.snapshots.List(r.Context(), r.PathValue("asset"), 31)
	if err != nil {
		slog.Error("failed to list snapshots for indicators", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(snaps) == 0 {
		writeError(w, http.StatusNotFound, "no snapshots found")
		return
	}

	indicators, err := indicator.Calculate(snaps)
	if err != nil {
		slog.Error("failed to calculate indicators", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, indicators)
}
