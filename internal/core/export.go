package core

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ExportFormat is the file type written by an export.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportFilePrefix starts the name of every export file.
const ExportFilePrefix = "export_"

// exportPreviewRows is the number of records returned by PreviewExport.
const exportPreviewRows = 5

// ctxCheckEvery is how many rows are written between cancellation checks.
const ctxCheckEvery = 1000

const xlsxSheet = "Sheet1"

// ParseExportFormat validates a requested export format. Empty means csv.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return ExportCSV, nil
	case "xlsx":
		return ExportXLSX, nil
	}
	return "", invalid("format", "must be one of: csv, xlsx")
}

// ContentType returns the MIME type of the export file.
func (f ExportFormat) ContentType() string {
	if f == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ExportResult describes a written export file.
type ExportResult struct {
	Path     string       `json:"path"`
	Filename string       `json:"filename"`
	Format   ExportFormat `json:"format"`
	Rows     int          `json:"rows"`
}

// ExportPreview describes what an export would contain without writing it.
type ExportPreview struct {
	TotalRowsToExport   int      `json:"total_rows_to_export"`
	ColumnsToExport     []string `json:"columns_to_export"`
	PreviewData         []Record `json:"preview_data"`
	EstimatedFileSizeMB float64  `json:"estimated_file_size_mb"`
}

// Exporter writes filtered datasets to files in one directory.
type Exporter struct {
	dir string
	// csvBOM prefixes CSV files with a UTF-8 BOM so Excel detects the encoding.
	csvBOM bool
	now    func() time.Time
}

// NewExporter creates an exporter writing into dir.
func NewExporter(dir string, csvBOM bool) *Exporter {
	return &Exporter{dir: dir, csvBOM: csvBOM, now: time.Now}
}

// Dir returns the export directory.
func (e *Exporter) Dir() string { return e.dir }

// selection is the output of the filter stage shared by export and preview.
type selection struct {
	rows []int
	cols []*Column
}

// selectRows applies search, date bounds and projection. Sorting and
// pagination are not part of exports.
func selectRows(t *Table, spec FilterSpec) (*selection, error) {
	cols, err := projectColumns(t, spec.Columns)
	if err != nil {
		return nil, err
	}
	return &selection{rows: FilterRows(t, spec), cols: cols}, nil
}

func (s *selection) names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// Export writes the filtered rows of t and returns the file it created. The
// file appears under its final name only once completely written.
func (e *Exporter) Export(ctx context.Context, t *Table, spec FilterSpec, format ExportFormat) (*ExportResult, error) {
	sel, err := selectRows(t, spec)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	name := fmt.Sprintf("%s%s_%s.%s",
		ExportFilePrefix, e.now().Format("20060102_150405"), uuid.NewString()[:8], format)
	path := filepath.Join(e.dir, name)

	tmp, err := os.CreateTemp(e.dir, ".export-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	switch format {
	case ExportCSV:
		err = e.writeCSV(ctx, tmpPath, sel)
	case ExportXLSX:
		err = writeXLSX(ctx, tmpPath, sel)
	default:
		err = invalid("format", "must be one of: csv, xlsx")
	}
	if err != nil {
		return nil, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("finalize export file: %w", err)
	}

	slog.Info("dataset exported", "file", name, "format", format, "rows", len(sel.rows))
	return &ExportResult{Path: path, Filename: name, Format: format, Rows: len(sel.rows)}, nil
}

func (e *Exporter) writeCSV(ctx context.Context, path string, sel *selection) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close export file: %w", cerr)
		}
	}()

	if e.csvBOM {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	w := csv.NewWriter(f)
	if err := w.Write(sel.names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	dateOnly := dateOnlyColumns(sel.cols)

	record := make([]string, len(sel.cols))
	for n, row := range sel.rows {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for i, c := range sel.cols {
			record[i] = cellText(c, row, dateOnly[i])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", n, err)
		}
	}

	w.Flush()
	return w.Error()
}

func writeXLSX(ctx context.Context, path string, sel *selection) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	sw, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	header := make([]any, len(sel.cols))
	for i, name := range sel.names() {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	values := make([]any, len(sel.cols))
	for n, row := range sel.rows {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for i, c := range sel.cols {
			values[i] = xlsxCell(c, row)
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("write row %d: %w", n, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func xlsxCell(c *Column, row int) any {
	v := c.Values[row]
	if !v.Valid {
		return nil
	}
	switch c.Kind {
	case KindInteger:
		return v.Int
	case KindFloat:
		return v.Float
	case KindDatetime:
		return v.Time
	case KindBoolean:
		return v.Bool
	}
	return v.Str
}

// PreviewExport reports the rows and columns an export with spec would
// write, with the first few records and an estimated size.
func PreviewExport(t *Table, spec FilterSpec) (*ExportPreview, error) {
	sel, err := selectRows(t, spec)
	if err != nil {
		return nil, err
	}

	n := min(exportPreviewRows, len(sel.rows))
	preview := make([]Record, n)
	for i := 0; i < n; i++ {
		preview[i] = t.Record(sel.rows[i], sel.cols)
	}

	return &ExportPreview{
		TotalRowsToExport:   len(sel.rows),
		ColumnsToExport:     sel.names(),
		PreviewData:         preview,
		EstimatedFileSizeMB: round2(float64(estimateSelection(sel)) / 1024 / 1024),
	}, nil
}

// estimateSelection approximates the bytes held by the selected cells, the
// same way EstimateMemory does for a whole table.
func estimateSelection(sel *selection) int64 {
	const cellSize = 8
	var total int64
	for _, c := range sel.cols {
		if c.Kind != KindText {
			total += int64(len(sel.rows)) * cellSize
			continue
		}
		for _, row := range sel.rows {
			total += 16 + int64(len(c.Values[row].Str))
		}
	}
	return total
}
