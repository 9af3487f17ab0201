// Package ingest reads trajectory tables from CSV, TSV and XLSX files.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/flightglobe/internal/trajectory"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV reads a delimited table. The first record is the header.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (trajectory.Table, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow ragged rows

	var tbl trajectory.Table
	for {
		if ctx.Err() != nil {
			return trajectory.Table{}, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return trajectory.Table{}, eris.Wrap(err, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if tbl.Header == nil {
			tbl.Header = record
			continue
		}
		tbl.Records = append(tbl.Records, record)
	}

	if tbl.Header == nil {
		return trajectory.Table{}, eris.New("csv: empty input, no header row")
	}
	return tbl, nil
}

// ReadFile loads a table from path, choosing the parser by extension:
// .xlsx uses the first sheet, .tsv is tab-delimited, anything else is CSV.
func ReadFile(ctx context.Context, path string) (trajectory.Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return ReadXLSX(path, XLSXOptions{})
	}

	f, err := os.Open(path)
	if err != nil {
		return trajectory.Table{}, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer func() { _ = f.Close() }()

	opts := CSVOptions{TrimSpace: true, LazyQuotes: true}
	if ext == ".tsv" {
		opts.Delimiter = '\t'
	}

	tbl, err := ReadCSV(ctx, decodeText(f), opts)
	if err != nil {
		return trajectory.Table{}, eris.Wrapf(err, "ingest: parse %s", path)
	}

	zap.L().Info("ingest: loaded table",
		zap.String("path", path),
		zap.Strings("columns", tbl.Header),
		zap.Int("rows", len(tbl.Records)),
	)
	return tbl, nil
}

// decodeText strips a UTF-8 byte order mark and transcodes UTF-16 input
// that starts with one, as spreadsheet exports often do.
func decodeText(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}
