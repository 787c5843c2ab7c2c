package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nqdhocai/ovira/internal/domain"
	"github.com/nqdhocai/ovira/internal/ledger"
)

// VaultRecord is the JSON payload stored per snapshot: the vault's
// aggregate state frozen at capture time, with derived reporting values
// that would otherwise need a live read.
type VaultRecord struct {
	AssetID       string          `json:"assetId"`
	TotalShares   uint64          `json:"totalShares"`
	TotalAssets   uint64          `json:"totalAssets"`
	HighWaterMark uint64          `json:"highWaterMark"`
	SharePrice    decimal.Decimal `json:"sharePrice"`
	PositionCount int             `json:"positionCount"`
	Pools         []domain.Pool   `json:"pools"`
}

// VaultSource provides the live vault state a snapshot captures.
type VaultSource interface {
	State(ctx context.Context, assetID string) (domain.VaultState, error)
	Positions(ctx context.Context, assetID string) ([]domain.UserPosition, error)
}

// Service manages snapshot generation and retrieval.
type Service struct {
	source VaultSource
	repo   Repository
}

// NewService creates a new snapshot Service.
func NewService(source VaultSource, repo Repository) *Service {
	return &Service{source: source, repo: repo}
}

// Generate captures and stores a snapshot of the asset's vault for the
// given date, returning the captured record.
func (s *Service) Generate(ctx context.Context, assetID string, date time.Time) (VaultRecord, error) {
	state, err := s.source.State(ctx, assetID)
	if err != nil {
		return VaultRecord{}, fmt.Errorf("reading vault state: %w", err)
	}
	positions, err := s.source.Positions(ctx, assetID)
	if err != nil {
		return VaultRecord{}, fmt.Errorf("reading positions: %w", err)
	}

	record := VaultRecord{
		AssetID:       assetID,
		TotalShares:   state.Vault.TotalShares,
		TotalAssets:   state.Vault.TotalAssets,
		HighWaterMark: state.Vault.HighWaterMark,
		SharePrice:    ledger.SharePrice(state.Vault.TotalShares, state.Vault.TotalAssets),
		PositionCount: len(positions),
		Pools:         state.Pools,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return VaultRecord{}, fmt.Errorf("marshaling vault record: %w", err)
	}
	if err := s.repo.Save(ctx, assetID, date, data); err != nil {
		return VaultRecord{}, fmt.Errorf("saving snapshot: %w", err)
	}
	return record, nil
}

// GetLatest retrieves the most recent snapshot for the asset.
func (s *Service) GetLatest(ctx context.Context, assetID string) (*Snapshot, error) {
	return s.repo.GetLatest(ctx, assetID)
}

// GetByDate retrieves a snapshot for a specific date.
func (s *Service) GetByDate(ctx context.Context, assetID string, date time.Time) (*Snapshot, error) {
	return s.repo.GetByDate(ctx, assetID, date)
}

// List retrieves recent snapshots, newest first.
func (s *Service) List(ctx context.Context, assetID string, limit int) ([]Snapshot, error) {
	return s.repo.List(ctx, assetID, limit)
}
