package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter implements SheetWriter by writing one workbook per vault under
// a local directory. Each write replaces the previous report.
type XLSXWriter struct {
	dir string
}

// NewXLSXWriter creates an XLSXWriter rooted at the given directory.
func NewXLSXWriter(dir string) *XLSXWriter {
	return &XLSXWriter{dir: dir}
}

// path returns the workbook path for one vault.
func (w *XLSXWriter) path(assetID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("vault_%s.xlsx", assetID))
}

// Write renders the indicator rows into a fresh workbook and saves it.
func (w *XLSXWriter) Write(ctx context.Context, assetID string, rows []IndicatorRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Indicators"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	values := buildSheet(rows)
	for i, row := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("computing cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	meta := []any{"Generated", time.Now().UTC().Format(time.RFC3339), "Asset", assetID}
	cell, err := excelize.CoordinatesToCellName(1, len(values)+2)
	if err != nil {
		return fmt.Errorf("computing cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &meta); err != nil {
		return fmt.Errorf("writing metadata row: %w", err)
	}

	if err := f.SaveAs(w.path(assetID)); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
