package export

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nqdhocai/ovira/internal/indicator"
)

func TestXLSXWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewXLSXWriter(dir)

	rows := []IndicatorRow{
		{Indicator: indicator.Indicator{ID: 1, Name: "Total Value Locked", Value: decimal.NewFromInt(2000), Unit: "assets"}},
		{Indicator: indicator.Indicator{ID: 3, Name: "Share Price", Value: decimal.RequireFromString("1.25"), Unit: "assets/share"}},
	}
	if err := w.Write(context.Background(), "USDC", rows); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(w.path("USDC"))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	name, err := f.GetCellValue("Indicators", "B2")
	if err != nil {
		t.Fatalf("reading cell: %v", err)
	}
	if name != "Total Value Locked" {
		t.Errorf("B2 = %q, want Total Value Locked", name)
	}
	price, err := f.GetCellValue("Indicators", "C3")
	if err != nil {
		t.Fatalf("reading cell: %v", err)
	}
	if price != "1.25" {
		t.Errorf("C3 = %q, want 1.25", price)
	}
}
