package core

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func fixedExporter(t *testing.T, bom bool) *Exporter {
	t.Helper()
	e := NewExporter(filepath.Join(t.TempDir(), "uploads"), bom)
	e.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC) }
	return e
}

// assertSameTable compares two tables cell by cell through their JSON values.
func assertSameTable(t *testing.T, want, got *Table) {
	t.Helper()
	require.Equal(t, want.ColumnNames(), got.ColumnNames())
	require.Equal(t, want.RowCount(), got.RowCount())
	for i, wc := range want.Columns() {
		gc := got.Columns()[i]
		assert.Equal(t, wc.Kind, gc.Kind, "kind of %s", wc.Name)
		for r := 0; r < want.RowCount(); r++ {
			assert.Equal(t, wc.Interface(r), gc.Interface(r), "%s row %d", wc.Name, r)
		}
	}
}

func TestParseExportFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"": ExportCSV, "csv": ExportCSV, " XLSX ": ExportXLSX} {
		got, err := ParseExportFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseExportFormat("pdf")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "format", ve.Fields[0].Field)
}

func TestExport_CSV(t *testing.T) {
	e := fixedExporter(t, false)

	res, err := e.Export(context.Background(), movements(t), specWith(func(s *FilterSpec) { s.Search = "bonifico" }), ExportCSV)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rows)
	assert.True(t, strings.HasPrefix(res.Filename, "export_20240301_123045_"), res.Filename)
	assert.True(t, strings.HasSuffix(res.Filename, ".csv"))
	assert.Equal(t, filepath.Join(e.Dir(), res.Filename), res.Path)

	body, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t,
		"id,data,descrizione,importo\n"+
			"0,2024-01-10,Bonifico SEPA,100.0\n"+
			"4,2024-01-15,Bonifico estero,50.0\n",
		string(body))

	entries, err := os.ReadDir(e.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestExport_CSVWithBOM(t *testing.T) {
	e := fixedExporter(t, true)

	res, err := e.Export(context.Background(), movements(t), specWith(nil), ExportCSV)
	require.NoError(t, err)

	body, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, utf8BOM))
}

func TestExport_CSVRoundTrip(t *testing.T) {
	want := movements(t)
	res, err := fixedExporter(t, false).Export(context.Background(), want, specWith(nil), ExportCSV)
	require.NoError(t, err)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()

	raw, err := ReadCSV(f)
	require.NoError(t, err)
	built, err := BuildTable(raw)
	require.NoError(t, err)

	assertSameTable(t, want, built.Table)
}

func TestExport_XLSXRoundTrip(t *testing.T) {
	want := movements(t)
	res, err := fixedExporter(t, false).Export(context.Background(), want, specWith(nil), ExportXLSX)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Filename, ".xlsx"))

	wb, err := excelize.OpenFile(res.Path)
	require.NoError(t, err)
	rows, err := wb.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	assert.Equal(t, []string{"id", "data", "descrizione", "importo"}, rows[0])
	assert.Len(t, rows, 6)

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()

	raw, err := ReadXLSX(f, FormatXLSX)
	require.NoError(t, err)
	built, err := BuildTable(raw)
	require.NoError(t, err)

	assertSameTable(t, want, built.Table)
}

func TestExport_Projection(t *testing.T) {
	e := fixedExporter(t, false)

	res, err := e.Export(context.Background(), movements(t), specWith(func(s *FilterSpec) {
		s.Columns = []string{"importo", "id"}
	}), ExportCSV)
	require.NoError(t, err)

	body, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "importo,id\n100.0,0\n"))
	assert.Contains(t, string(body), "\n,3\n", "null amount is written empty")

	_, err = e.Export(context.Background(), movements(t), specWith(func(s *FilterSpec) {
		s.Columns = []string{"saldo"}
	}), ExportCSV)
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestExport_Cancelled(t *testing.T) {
	e := fixedExporter(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, movements(t), specWith(nil), ExportCSV)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(e.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPreviewExport(t *testing.T) {
	tbl := movements(t)

	p, err := PreviewExport(tbl, specWith(nil))
	require.NoError(t, err)
	assert.Equal(t, 5, p.TotalRowsToExport)
	assert.Len(t, p.PreviewData, 5)
	assert.Equal(t, tbl.ColumnNames(), p.ColumnsToExport)

	p, err = PreviewExport(tbl, specWith(func(s *FilterSpec) {
		s.Search = "bonifico"
		s.Columns = []string{"importo"}
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalRowsToExport)
	assert.Equal(t, []string{"importo"}, p.ColumnsToExport)
	require.Len(t, p.PreviewData, 2)
	assert.Equal(t, []string{"importo"}, p.PreviewData[0].Keys())
	assert.GreaterOrEqual(t, p.EstimatedFileSizeMB, 0.0)
}

func TestPreviewExport_UnknownColumn(t *testing.T) {
	_, err := PreviewExport(movements(t), specWith(func(s *FilterSpec) { s.Columns = []string{"x"} }))
	assert.ErrorIs(t, err, ErrColumnNotFound)
}
