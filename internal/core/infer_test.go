package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferKind(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  Kind
	}{
		{"integers with nulls", []string{"1", "-2", ""}, KindInteger},
		{"floats", []string{"1", "2.5"}, KindFloat},
		{"scientific", []string{"1e3"}, KindFloat},
		{"zero and one stay integer", []string{"0", "1"}, KindInteger},
		{"booleans", []string{"true", "FALSE", "NA"}, KindBoolean},
		{"mixed is text", []string{"1", "x"}, KindText},
		{"decimal comma is text", []string{"1,5"}, KindText},
		{"all null is text", []string{"", "null"}, KindText},
		{"no cells", nil, KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferKind(tt.cells))
		})
	}
}

func bankStatement() *RawTable {
	return &RawTable{
		Headers: []string{"Data Operazione", "Descrizione", "Importo", "Saldo", "Descrizione"},
		Rows: [][]string{
			{"15/01/2024", "Bonifico", "1.234,56", "100", "a"},
			{"", "", "", "", ""},
			{"bad date", "Pagamento POS", "n/a", "200", "b"},
			{"16/01/2024", "Stipendio", "abc", "300", ""},
		},
	}
}

func TestBuildTable(t *testing.T) {
	res, err := BuildTable(bankStatement())
	require.NoError(t, err)
	tbl := res.Table

	assert.Equal(t, []string{"data_operazione", "descrizione", "importo", "saldo", "descrizione_1"}, tbl.ColumnNames())
	assert.Equal(t, 3, tbl.RowCount(), "all-null row is dropped")

	kinds := map[string]Kind{}
	for _, c := range tbl.Columns() {
		kinds[c.Name] = c.Kind
	}
	assert.Equal(t, map[string]Kind{
		"data_operazione": KindDatetime,
		"descrizione":     KindText,
		"importo":         KindFloat,
		"saldo":           KindInteger,
		"descrizione_1":   KindText,
	}, kinds)

	dates, _ := tbl.Column("data_operazione")
	assert.True(t, dates.Values[0].Time.Equal(date(2024, 1, 15)))
	assert.False(t, dates.Values[1].Valid, "unparseable date becomes null")
	assert.True(t, dates.Values[2].Time.Equal(date(2024, 1, 16)))

	amounts, _ := tbl.Column("importo")
	assert.InDelta(t, 1234.56, amounts.Values[0].Float, 1e-9)
	assert.False(t, amounts.Values[1].Valid)
	assert.False(t, amounts.Values[2].Valid, "unparseable amount becomes null without dropping the row")

	assert.Equal(t, CoercionReport{
		{Column: "data_operazione", Target: KindDatetime, Converted: 2, Nulled: 1},
		{Column: "importo", Target: KindFloat, Converted: 1, Nulled: 1},
	}, res.Coercions)
	assert.Empty(t, res.Coercions.Failed())

	assert.Equal(t, ColumnPair{Original: "Descrizione", Normalized: "descrizione_1"}, res.Mapping[4])
}

func TestBuildTable_AmountKeywordWinsOverDate(t *testing.T) {
	res, err := BuildTable(&RawTable{
		Headers: []string{"Data Importo"},
		Rows:    [][]string{{"12,50"}},
	})
	require.NoError(t, err)

	col, _ := res.Table.Column("data_importo")
	assert.Equal(t, KindFloat, col.Kind)
	assert.InDelta(t, 12.5, col.Values[0].Float, 1e-9)
}

func TestBuildTable_FailedCoercionIsReported(t *testing.T) {
	res, err := BuildTable(&RawTable{
		Headers: []string{"date", "note"},
		Rows:    [][]string{{"soon", "x"}, {"later", "y"}},
	})
	require.NoError(t, err)

	failed := res.Coercions.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "date", failed[0].Column)
	assert.Equal(t, 2, failed[0].Nulled)
	assert.NotEmpty(t, failed[0].Warning)
	assert.Equal(t, 2, res.Table.RowCount())
}

func TestBuildTable_SpreadsheetDateColumn(t *testing.T) {
	res, err := BuildTable(&RawTable{
		Headers:     []string{"Valuta"},
		Rows:        [][]string{{"45306"}, {""}},
		Spreadsheet: true,
		DateColumns: map[int]bool{0: true},
	})
	require.NoError(t, err)

	col, _ := res.Table.Column("valuta")
	require.Equal(t, KindDatetime, col.Kind)
	assert.True(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Equal(col.Values[0].Time))
	assert.Equal(t, 1, res.Table.RowCount())
}

func TestBuildTable_HeaderOnly(t *testing.T) {
	res, err := BuildTable(&RawTable{Headers: []string{"Data", "Importo"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.RowCount())
	assert.Len(t, res.Table.Columns(), 2)
}
