package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SourceFormat identifies how an uploaded file is parsed.
type SourceFormat string

const (
	FormatCSV  SourceFormat = "csv"
	FormatXLSX SourceFormat = "xlsx"
	FormatXLS  SourceFormat = "xls"
)

// ParseSourceFormat accepts a format name or an extension with or without
// the leading dot.
func ParseSourceFormat(s string) (SourceFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename derives the source format from a file extension.
func FormatFromFilename(name string) (SourceFormat, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return ParseSourceFormat(ext)
}

// IsSpreadsheet reports whether the format is a workbook.
func (f SourceFormat) IsSpreadsheet() bool {
	return f == FormatXLSX || f == FormatXLS
}

// RawTable is a parsed source before typing: one header row and data rows
// padded to the header width.
type RawTable struct {
	Headers []string
	Rows    [][]string

	// Spreadsheet marks workbook sources, whose numbers may be serial dates.
	Spreadsheet bool

	// DateColumns holds the positions of workbook columns formatted as dates.
	DateColumns map[int]bool
}

// ReadSource parses r according to format.
func ReadSource(r io.Reader, format SourceFormat) (*RawTable, error) {
	switch {
	case format == FormatCSV:
		return ReadCSV(r)
	case format.IsSpreadsheet():
		return ReadXLSX(r, format)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ReadCSV parses delimited text. The delimiter is sniffed from the header
// line among ',', ';', tab and '|'. Short rows are padded; a row with extra
// non-empty fields fails the load with its line number.
func ReadCSV(r io.Reader) (*RawTable, error) {
	br := bufio.NewReader(DecodeText(r))
	delim := sniffDelimiter(br)

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, &LoadError{Source: string(FormatCSV), Err: ErrEmptyFile}
	}
	if err != nil {
		return nil, csvLoadError(err)
	}

	raw := &RawTable{Headers: headers}
	width := len(headers)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvLoadError(err)
		}

		if len(rec) > width {
			extra := rec[width:]
			if !allBlank(extra) {
				line, _ := cr.FieldPos(0)
				return nil, &LoadError{
					Source: string(FormatCSV),
					Line:   line,
					Err:    fmt.Errorf("invalid csv: expected %d fields, saw %d", width, len(rec)),
				}
			}
			rec = rec[:width]
		}
		raw.Rows = append(raw.Rows, padRow(rec, width))
	}

	return raw, nil
}

func csvLoadError(err error) error {
	if errors.Is(err, ErrFileTooLarge) {
		return err
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &LoadError{Source: string(FormatCSV), Line: pe.Line, Err: fmt.Errorf("invalid csv: %w", pe.Err)}
	}
	return &LoadError{Source: string(FormatCSV), Err: err}
}

// sniffDelimiter picks the most frequent candidate separator on the first
// line, defaulting to ','.
func sniffDelimiter(br *bufio.Reader) rune {
	head, _ := br.Peek(4096)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}

	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(head, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ReadXLSX parses the first worksheet of an OOXML workbook. Legacy BIFF
// workbooks (.xls) are rejected with ErrUnsupportedFormat.
func ReadXLSX(r io.Reader, format SourceFormat) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		if format == FormatXLS {
			return nil, &LoadError{
				Source: string(format),
				Err:    fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat),
			}
		}
		return nil, &LoadError{Source: string(format), Err: fmt.Errorf("invalid workbook: %w", err)}
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Source: string(format), Err: ErrEmptyFile}
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &LoadError{Source: string(format), Err: fmt.Errorf("read sheet %s: %w", sheet, err)}
	}
	if len(rows) == 0 {
		return nil, &LoadError{Source: string(format), Err: ErrEmptyFile}
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	raw := &RawTable{
		Headers:     padRow(rows[0], width),
		Rows:        make([][]string, 0, len(rows)-1),
		Spreadsheet: true,
	}
	for _, row := range rows[1:] {
		raw.Rows = append(raw.Rows, padRow(row, width))
	}
	raw.DateColumns = dateFormattedColumns(f, sheet, raw.Rows, width)

	return raw, nil
}

// dateFormattedColumns inspects the style of each column's first non-empty
// data cell and reports the columns displayed as dates.
func dateFormattedColumns(f *excelize.File, sheet string, rows [][]string, width int) map[int]bool {
	out := make(map[int]bool)
	for col := 0; col < width; col++ {
		for i, row := range rows {
			if strings.TrimSpace(row[col]) == "" {
				continue
			}
			// +2: one for the header row, one for 1-based rows
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				break
			}
			styleID, err := f.GetCellStyle(sheet, cell)
			if err != nil || styleID == 0 {
				break
			}
			style, err := f.GetStyle(styleID)
			if err == nil && isDateNumFmt(style) {
				out[col] = true
			}
			break
		}
	}
	return out
}

var quotedOrBracketed = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]`)

// isDateNumFmt reports whether a cell style formats numbers as dates.
func isDateNumFmt(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		code := strings.ToLower(quotedOrBracketed.ReplaceAllString(*style.CustomNumFmt, ""))
		return strings.ContainsAny(code, "dy")
	}
	switch {
	case style.NumFmt >= 14 && style.NumFmt <= 17, style.NumFmt == 22:
		return true
	case style.NumFmt >= 27 && style.NumFmt <= 36, style.NumFmt >= 50 && style.NumFmt <= 58:
		return true
	}
	return false
}

func padRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
