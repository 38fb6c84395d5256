package core

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeColumns(t *testing.T) {
	out := DescribeColumns(movements(t))

	assert.Equal(t, 4, out.TotalColumns)
	require.Len(t, out.Columns, 4)

	imp := out.Columns[3]
	assert.Equal(t, "importo", imp.Name)
	assert.Equal(t, KindFloat, imp.Type)
	assert.Equal(t, 1, imp.NullCount)
	assert.Equal(t, 4, imp.UniqueCount)
	assert.Equal(t, []any{100.0, -20.5, 1500.0, 50.0}, imp.SampleValues)
}

func TestDescribeColumn_Numeric(t *testing.T) {
	d, err := DescribeColumn(movements(t), "importo")
	require.NoError(t, err)

	assert.Equal(t, 5, d.TotalRows)
	assert.Equal(t, 20.0, d.NullPercentage)
	assert.Equal(t, 80.0, d.UniquePercentage)
	require.NotNil(t, d.NumericDetail)
	assert.Equal(t, -20.5, *d.Min)
	assert.Equal(t, 1500.0, *d.Max)
	assert.InDelta(t, 407.375, *d.Mean, 1e-9)
	assert.InDelta(t, 75.0, *d.Median, 1e-9)
	assert.InDelta(t, 730.0919319966949, *d.Std, 1e-9)
	assert.Nil(t, d.TextStats)
	assert.Nil(t, d.DateDetail)
	assert.Equal(t, []any{-20.5, 1500.0, 50.0}, d.LastValues[1:])
}

func TestDescribeColumn_Text(t *testing.T) {
	d, err := DescribeColumn(movements(t), "descrizione")
	require.NoError(t, err)

	require.NotNil(t, d.TextStats)
	assert.Equal(t, 12.5, d.AvgTextLength)
	assert.Equal(t, 9, d.MinTextLength)
	assert.Equal(t, 15, d.MaxTextLength)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"avg_text_length":12.5`)
	assert.NotContains(t, string(b), `"std"`)
}

func TestDescribeColumn_Datetime(t *testing.T) {
	d, err := DescribeColumn(movements(t), "data")
	require.NoError(t, err)

	require.NotNil(t, d.DateDetail)
	assert.Equal(t, "2024-01-10T00:00:00", *d.MinDate)
	assert.Equal(t, "2024-01-20T00:00:00", *d.MaxDate)
	assert.Equal(t, 10, d.DateRangeDays)
	assert.Equal(t, 3, d.UniqueCount)
	assert.Equal(t, []any{
		"2024-01-10T00:00:00", "2024-01-15T00:00:00", "2024-01-20T00:00:00", "2024-01-15T00:00:00",
	}, d.LastValues)
}

func TestDescribeColumn_NotFound(t *testing.T) {
	_, err := DescribeColumn(movements(t), "saldo")
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestDescribeColumn_EmptyDataset(t *testing.T) {
	tbl := tableOf(t, &Column{Name: "importo", Kind: KindFloat})

	d, err := DescribeColumn(tbl, "importo")
	require.NoError(t, err)
	assert.Zero(t, d.TotalRows)
	assert.Zero(t, d.NullPercentage)
	require.NotNil(t, d.NumericDetail)
	assert.Nil(t, d.Min)
	assert.Nil(t, d.Mean)
	assert.Nil(t, d.Std)
	assert.Empty(t, d.SampleValues)
}

func TestDescribeColumn_SingleValueHasNoStd(t *testing.T) {
	tbl := tableOf(t, &Column{Name: "n", Kind: KindInteger, Values: []Value{IntValue(7)}})

	d, err := DescribeColumn(tbl, "n")
	require.NoError(t, err)
	assert.Equal(t, 7.0, *d.Median)
	assert.Nil(t, d.Std)
}

func TestDescribeDataset(t *testing.T) {
	stats, err := DescribeDataset(context.Background(), movements(t))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalRows)
	assert.Equal(t, 4, stats.TotalColumns)
	assert.GreaterOrEqual(t, stats.MemoryUsageMB, 0.0)

	imp, ok := stats.ColumnsInfo.Get("importo")
	require.True(t, ok)
	require.NotNil(t, imp.NumericStats)
	assert.InDelta(t, 407.375, *imp.Mean, 1e-9)
	assert.Nil(t, imp.DateRange)

	dt, ok := stats.ColumnsInfo.Get("data")
	require.True(t, ok)
	require.NotNil(t, dt.DateRange)
	assert.Equal(t, "2024-01-20T00:00:00", *dt.MaxDate)

	desc, ok := stats.ColumnsInfo.Get("descrizione")
	require.True(t, ok)
	assert.Nil(t, desc.NumericStats)
	assert.Equal(t, 20.0, desc.NullPercentage)

	b, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"columns_info":{"id":{"type":"integer"`)
}

func TestDescribeDataset_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DescribeDataset(ctx, movements(t))
	assert.ErrorIs(t, err, context.Canceled)
}
