package export

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nqdhocai/ovira/internal/indicator"
	"github.com/nqdhocai/ovira/internal/snapshot"
)

// changeFields maps indicator IDs to the snapshot field their period
// changes are computed over. Yield indicators (APY) have no entry; they are
// already period-derived.
var changeFields = map[int]func(snapshot.VaultRecord) decimal.Decimal{
	1: func(r snapshot.VaultRecord) decimal.Decimal { return decimal.NewFromUint64(r.TotalAssets) },
	2: func(r snapshot.VaultRecord) decimal.Decimal { return decimal.NewFromUint64(r.TotalShares) },
	3: func(r snapshot.VaultRecord) decimal.Decimal { return r.SharePrice },
	4: func(r snapshot.VaultRecord) decimal.Decimal { return decimal.NewFromInt(int64(r.PositionCount)) },
	5: func(r snapshot.VaultRecord) decimal.Decimal { return decimal.NewFromUint64(r.HighWaterMark) },
}

// IndicatorRow holds a computed indicator with historical period changes.
type IndicatorRow struct {
	indicator.Indicator
	WeekChange    *decimal.Decimal
	MonthChange   *decimal.Decimal
	QuarterChange *decimal.Decimal
	YearChange    *decimal.Decimal
}

// SheetWriter writes indicator rows for one vault to a report destination.
type SheetWriter interface {
	Write(ctx context.Context, assetID string, rows []IndicatorRow) error
}

// Service assembles indicator rows from the snapshot series and delegates
// writing to the configured SheetWriters.
type Service struct {
	snapshots snapshot.Repository
	writers   []SheetWriter
}

// NewService creates a new export Service.
func NewService(snapshots snapshot.Repository, writers ...SheetWriter) *Service {
	return &Service{snapshots: snapshots, writers: writers}
}

// Export calculates indicators with historical changes for one vault and
// writes them to every destination. Implements worker.AfterSnapshotHook.
func (s *Service) Export(ctx context.Context, assetID string) error {
	// A year of dailies covers every change window.
	snaps, err := s.snapshots.List(ctx, assetID, 366)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	rows, err := buildRows(snaps)
	if err != nil {
		return fmt.Errorf("building indicator rows: %w", err)
	}

	for _, w := range s.writers {
		if err := w.Write(ctx, assetID, rows); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
	}
	return nil
}

// buildRows computes current indicators plus week/month/quarter/year changes
// from a newest-first snapshot series.
func buildRows(snaps []snapshot.Snapshot) ([]IndicatorRow, error) {
	current, err := indicator.Calculate(snaps)
	if err != nil {
		return nil, err
	}

	rows := make([]IndicatorRow, 0, len(current))
	for _, ind := range current {
		row := IndicatorRow{Indicator: ind}
		if field, ok := changeFields[ind.ID]; ok {
			row.WeekChange = indicator.ChangeOverDays(snaps, 7, field)
			row.MonthChange = indicator.ChangeOverDays(snaps, 30, field)
			row.QuarterChange = indicator.ChangeOverDays(snaps, 90, field)
			row.YearChange = indicator.ChangeOverDays(snaps, 365, field)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func ptrFloat(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	f, _ := d.Float64()
	return f
}
