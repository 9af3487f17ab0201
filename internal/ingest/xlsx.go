package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/flightglobe/internal/trajectory"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// ReadXLSX reads one sheet as a table; the first row is the header.
// Blank trailing rows are skipped.
func ReadXLSX(path string, opts XLSXOptions) (trajectory.Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return trajectory.Table{}, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return trajectory.Table{}, err
	}

	var tbl trajectory.Table
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for j, c := range row.Cells {
			cells[j] = c.String()
			if cells[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if tbl.Header == nil {
			tbl.Header = cells
			continue
		}
		tbl.Records = append(tbl.Records, cells)
	}

	if tbl.Header == nil {
		return trajectory.Table{}, eris.Errorf("xlsx: sheet %q has no header row", sheet.Name)
	}

	zap.L().Info("ingest: loaded sheet",
		zap.String("path", path),
		zap.String("sheet", sheet.Name),
		zap.Int("rows", len(tbl.Records)),
	)
	return tbl, nil
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
