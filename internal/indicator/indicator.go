// Package indicator derives reporting metrics from the stored vault
// snapshot series: TVL, share price, holder counts, and period-over-period
// performance. Values are decimal and report-only; nothing here feeds back
// into accounting state.
package indicator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nqdhocai/ovira/internal/snapshot"
)

// Meta holds the canonical name and unit for an indicator.
type Meta struct {
	Name string
	Unit string
}

// registry maps indicator IDs to their canonical metadata.
var registry = map[int]Meta{
	1: {Name: "Total Value Locked", Unit: "assets"},
	2: {Name: "Total Shares", Unit: "shares"},
	3: {Name: "Share Price", Unit: "assets/share"},
	4: {Name: "Holders", Unit: "positions"},
	5: {Name: "High-Water Mark", Unit: "assets"},
	6: {Name: "APY 7d", Unit: "%"},
	7: {Name: "APY 30d", Unit: "%"},
}

// Indicator is one computed metric.
type Indicator struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// New creates an indicator using the canonical metadata from the registry.
func New(id int, value decimal.Decimal) Indicator {
	meta := registry[id]
	return Indicator{ID: id, Name: meta.Name, Value: value, Unit: meta.Unit}
}

// point is one decoded snapshot in date order.
type point struct {
	date   time.Time
	record snapshot.VaultRecord
}

// decode unmarshals snapshots into points ordered oldest first, skipping
// unreadable payloads.
func decode(snaps []snapshot.Snapshot) []point {
	points := make([]point, 0, len(snaps))
	// Repository order is newest first.
	for i := len(snaps) - 1; i >= 0; i-- {
		var rec snapshot.VaultRecord
		if err := json.Unmarshal(snaps[i].Data, &rec); err != nil {
			slog.Warn("skipping undecodable snapshot", "id", snaps[i].ID, "error", err)
			continue
		}
		points = append(points, point{date: snaps[i].SnapshotDate, record: rec})
	}
	return points
}

// priceAt returns the share price at or before the given date, walking the
// series from the end.
func priceAt(points []point, at time.Time) (decimal.Decimal, bool) {
	p, _, found := lo.FindLastIndexOf(points, func(p point) bool {
		return !p.date.After(at)
	})
	if !found {
		return decimal.Zero, false
	}
	return p.record.SharePrice, true
}

// annualizedYield computes the annualized percentage yield implied by the
// share price moving from then to now over the given number of days.
func annualizedYield(nowPrice, thenPrice decimal.Decimal, days int) (decimal.Decimal, error) {
	if days <= 0 || thenPrice.IsZero() {
		return decimal.Zero, fmt.Errorf("no base price for %d day yield", days)
	}
	ratio, exact := nowPrice.Div(thenPrice).Float64()
	if !exact {
		slog.Warn("precision loss in yield float64 conversion")
	}
	if ratio <= 0 {
		return decimal.Zero, fmt.Errorf("non-positive price ratio")
	}
	apy := (math.Pow(ratio, 365.0/float64(days)) - 1) * 100
	return decimal.NewFromFloat(apy).Round(4), nil
}

// Calculate computes all indicators for the latest snapshot in the series.
func Calculate(snaps []snapshot.Snapshot) ([]Indicator, error) {
	points := decode(snaps)
	if len(points) == 0 {
		return nil, fmt.Errorf("no snapshots to calculate from")
	}
	latest := points[len(points)-1]

	indicators := []Indicator{
		New(1, decimal.NewFromUint64(latest.record.TotalAssets)),
		New(2, decimal.NewFromUint64(latest.record.TotalShares)),
		New(3, latest.record.SharePrice),
		New(4, decimal.NewFromInt(int64(latest.record.PositionCount))),
		New(5, decimal.NewFromUint64(latest.record.HighWaterMark)),
	}

	for _, yield := range []struct{ id, days int }{{6, 7}, {7, 30}} {
		id, days := yield.id, yield.days
		then, ok := priceAt(points, latest.date.AddDate(0, 0, -days))
		if !ok {
			continue
		}
		apy, err := annualizedYield(latest.record.SharePrice, then, days)
		if err != nil {
			slog.Warn("skipping yield indicator", "id", id, "error", err)
			continue
		}
		indicators = append(indicators, New(id, apy))
	}
	return indicators, nil
}

// ChangeOverDays returns the percentage change of the indicator value
// between the latest snapshot and the one at-or-before days ago, or nil
// when no base point exists. value is extracted by field.
func ChangeOverDays(snaps []snapshot.Snapshot, days int, field func(snapshot.VaultRecord) decimal.Decimal) *decimal.Decimal {
	points := decode(snaps)
	if len(points) < 2 {
		return nil
	}
	latest := points[len(points)-1]
	base, _, found := lo.FindLastIndexOf(points, func(p point) bool {
		return !p.date.After(latest.date.AddDate(0, 0, -days))
	})
	if !found {
		return nil
	}
	baseVal := field(base.record)
	if baseVal.IsZero() {
		return nil
	}
	change := field(latest.record).Sub(baseVal).Div(baseVal).Mul(decimal.NewFromInt(100)).Round(4)
	return &change
}
