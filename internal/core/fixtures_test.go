package core

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// xlsxFixture builds an in-memory workbook whose first sheet holds rows.
// Columns listed in dateCols get a built-in date format on their data cells.
func xlsxFixture(t *testing.T, rows [][]any, dateCols ...int) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	const sheet = "Sheet1"

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	if len(dateCols) > 0 && len(rows) > 1 {
		style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
		require.NoError(t, err)
		for _, col := range dateCols {
			top, err := excelize.CoordinatesToCellName(col+1, 2)
			require.NoError(t, err)
			bottom, err := excelize.CoordinatesToCellName(col+1, len(rows))
			require.NoError(t, err)
			require.NoError(t, f.SetCellStyle(sheet, top, bottom, style))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// tableOf builds a table from typed columns, failing the test on error.
func tableOf(t *testing.T, cols ...*Column) *Table {
	t.Helper()
	tbl, err := NewTable(cols)
	require.NoError(t, err)
	return tbl
}
