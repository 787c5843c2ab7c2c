package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nqdhocai/ovira/internal/domain"
)

type mockVaultSource struct {
	state     domain.VaultState
	positions []domain.UserPosition
	err       error
}

func (m *mockVaultSource) State(_ context.Context, _ string) (domain.VaultState, error) {
	return m.state, m.err
}

func (m *mockVaultSource) Positions(_ context.Context, _ string) ([]domain.UserPosition, error) {
	return m.positions, nil
}

type mockRepo struct {
	saved map[string]json.RawMessage
}

func (m *mockRepo) Save(_ context.Context, assetID string, date time.Time, data json.RawMessage) error {
	if m.saved == nil {
		m.saved = map[string]json.RawMessage{}
	}
	m.saved[assetID+"/"+date.Format("2006-01-02")] = data
	return nil
}

func (m *mockRepo) GetLatest(_ context.Context, _ string) (*Snapshot, error) {
	return nil, ErrNotFound
}

func (m *mockRepo) GetByDate(_ context.Context, _ string, _ time.Time) (*Snapshot, error) {
	return nil, ErrNotFound
}

func (m *mockRepo) List(_ context.Context, _ string, _ int) ([]Snapshot, error) {
	return nil, nil
}

func TestGenerate(t *testing.T) {
	source := &mockVaultSource{
		state: domain.VaultState{
			Vault: domain.Vault{
				AssetID: "USDC", TotalShares: 100, TotalAssets: 250, HighWaterMark: 250,
			},
			Pools: []domain.Pool{{AssetID: "USDC", Name: "a", AllocationBps: 10000}},
		},
		positions: []domain.UserPosition{
			{AssetID: "USDC", Owner: "alice", Shares: 60},
			{AssetID: "USDC", Owner: "bob", Shares: 40},
		},
	}
	repo := &mockRepo{}
	svc := NewService(source, repo)

	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	record, err := svc.Generate(context.Background(), "USDC", date)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if record.TotalShares != 100 || record.TotalAssets != 250 {
		t.Errorf("record totals = %d/%d, want 100/250", record.TotalShares, record.TotalAssets)
	}
	if record.SharePrice.String() != "2.5" {
		t.Errorf("share price = %s, want 2.5", record.SharePrice)
	}
	if record.PositionCount != 2 {
		t.Errorf("position count = %d, want 2", record.PositionCount)
	}

	data, ok := repo.saved["USDC/2026-08-30"]
	if !ok {
		t.Fatal("snapshot was not saved")
	}
	var stored VaultRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("stored payload is not a VaultRecord: %v", err)
	}
	if stored.AssetID != "USDC" || len(stored.Pools) != 1 {
		t.Errorf("stored record = %+v", stored)
	}
}

func TestGenerateSourceError(t *testing.T) {
	source := &mockVaultSource{err: domain.ErrVaultNotInitialized}
	svc := NewService(source, &mockRepo{})

	_, err := svc.Generate(context.Background(), "NOPE", time.Now())
	if !errors.Is(err, domain.ErrVaultNotInitialized) {
		t.Errorf("Generate() error = %v, want ErrVaultNotInitialized", err)
	}
}
