package core

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"runtime"
	"slices"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Sample sizes used by the profiler.
const (
	overviewSamples = 5
	detailSamples   = 10
	detailTail      = 5
)

// ColumnInfo is the short per-column summary used by the column listing.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         Kind   `json:"type"`
	SampleValues []any  `json:"sample_values"`
	NullCount    int    `json:"null_count"`
	UniqueCount  int    `json:"unique_count"`
}

// ColumnsOverview lists every column of the active dataset.
type ColumnsOverview struct {
	Columns      []ColumnInfo `json:"columns"`
	TotalColumns int          `json:"total_columns"`
}

// NumericStats holds the summary of a numeric column. All fields are nil
// when the column has no non-null values.
type NumericStats struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
}

// NumericDetail adds the sample standard deviation, nil below two values.
type NumericDetail struct {
	NumericStats
	Std *float64 `json:"std"`
}

// TextStats holds string lengths, counted in characters, over non-null values.
type TextStats struct {
	AvgTextLength float64 `json:"avg_text_length"`
	MinTextLength int     `json:"min_text_length"`
	MaxTextLength int     `json:"max_text_length"`
}

// DateRange holds the extremes of a datetime column in ISO-8601.
type DateRange struct {
	MinDate *string `json:"min_date"`
	MaxDate *string `json:"max_date"`
}

// DateDetail adds the whole-day span between the extremes.
type DateDetail struct {
	DateRange
	DateRangeDays int `json:"date_range_days"`
}

// ColumnDetail is the full profile of one column. Only the section that
// matches the column's kind is present.
type ColumnDetail struct {
	Name             string  `json:"name"`
	Type             Kind    `json:"type"`
	TotalRows        int     `json:"total_rows"`
	NullCount        int     `json:"null_count"`
	NullPercentage   float64 `json:"null_percentage"`
	UniqueCount      int     `json:"unique_count"`
	UniquePercentage float64 `json:"unique_percentage"`
	SampleValues     []any   `json:"sample_values"`
	LastValues       []any   `json:"last_values"`

	*NumericDetail
	*TextStats
	*DateDetail
}

// ColumnStats is the per-column entry of DatasetStats.
type ColumnStats struct {
	Name             string  `json:"-"`
	Type             Kind    `json:"type"`
	NullCount        int     `json:"null_count"`
	NullPercentage   float64 `json:"null_percentage"`
	UniqueCount      int     `json:"unique_count"`
	UniquePercentage float64 `json:"unique_percentage"`

	*NumericStats
	*DateRange
}

// ColumnStatsSet marshals to a JSON object keyed by column name, in column
// order.
type ColumnStatsSet []ColumnStats

// MarshalJSON implements json.Marshaler.
func (s ColumnStatsSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cs := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(cs.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(cs)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the entry for a column.
func (s ColumnStatsSet) Get(name string) (ColumnStats, bool) {
	for _, cs := range s {
		if cs.Name == name {
			return cs, true
		}
	}
	return ColumnStats{}, false
}

// DatasetStats summarizes the whole dataset.
type DatasetStats struct {
	TotalRows     int            `json:"total_rows"`
	TotalColumns  int            `json:"total_columns"`
	MemoryUsageMB float64        `json:"memory_usage_mb"`
	ColumnsInfo   ColumnStatsSet `json:"columns_info"`
}

// DescribeColumns returns the short summary of every column.
func DescribeColumns(t *Table) *ColumnsOverview {
	out := &ColumnsOverview{Columns: make([]ColumnInfo, 0, len(t.Columns()))}
	for _, c := range t.Columns() {
		nulls := nullCount(c)
		out.Columns = append(out.Columns, ColumnInfo{
			Name:         c.Name,
			Type:         c.Kind,
			SampleValues: headValues(c, overviewSamples),
			NullCount:    nulls,
			UniqueCount:  uniqueCount(c),
		})
	}
	out.TotalColumns = len(out.Columns)
	return out
}

// DescribeColumn returns the full profile of one column.
func DescribeColumn(t *Table, name string) (*ColumnDetail, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, columnNotFound(name)
	}

	rows := t.RowCount()
	nulls := nullCount(c)
	unique := uniqueCount(c)
	d := &ColumnDetail{
		Name:             c.Name,
		Type:             c.Kind,
		TotalRows:        rows,
		NullCount:        nulls,
		NullPercentage:   percentage(nulls, rows),
		UniqueCount:      unique,
		UniquePercentage: percentage(unique, rows),
		SampleValues:     headValues(c, detailSamples),
		LastValues:       tailValues(c, detailTail),
	}

	switch {
	case c.Kind.IsNumeric():
		nums := numbers(c)
		d.NumericDetail = &NumericDetail{NumericStats: numericStats(nums), Std: stddev(nums)}
	case c.Kind == KindText:
		d.TextStats = textStats(c)
	case c.Kind == KindDatetime:
		d.DateDetail = dateDetail(c)
	}
	return d, nil
}

// DescribeDataset profiles every column concurrently.
func DescribeDataset(ctx context.Context, t *Table) (*DatasetStats, error) {
	cols := t.Columns()
	stats := make(ColumnStatsSet, len(cols))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range cols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats[i] = columnStats(c, t.RowCount())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DatasetStats{
		TotalRows:     t.RowCount(),
		TotalColumns:  len(cols),
		MemoryUsageMB: round2(float64(EstimateMemory(t)) / 1024 / 1024),
		ColumnsInfo:   stats,
	}, nil
}

func columnStats(c *Column, rows int) ColumnStats {
	nulls := nullCount(c)
	unique := uniqueCount(c)
	cs := ColumnStats{
		Name:             c.Name,
		Type:             c.Kind,
		NullCount:        nulls,
		NullPercentage:   percentage(nulls, rows),
		UniqueCount:      unique,
		UniquePercentage: percentage(unique, rows),
	}
	switch {
	case c.Kind.IsNumeric():
		ns := numericStats(numbers(c))
		cs.NumericStats = &ns
	case c.Kind == KindDatetime:
		dr := dateDetail(c).DateRange
		cs.DateRange = &dr
	}
	return cs
}

// EstimateMemory approximates the bytes held by the table's cells.
func EstimateMemory(t *Table) int64 {
	rows := make([]int, t.RowCount())
	for i := range rows {
		rows[i] = i
	}
	return estimateSelection(&selection{rows: rows, cols: t.Columns()})
}

func nullCount(c *Column) int {
	n := 0
	for _, v := range c.Values {
		if !v.Valid {
			n++
		}
	}
	return n
}

func uniqueCount(c *Column) int {
	seen := make(map[any]struct{})
	for i, v := range c.Values {
		if !v.Valid {
			continue
		}
		switch c.Kind {
		case KindDatetime:
			seen[v.Time.UnixNano()] = struct{}{}
		default:
			seen[c.Interface(i)] = struct{}{}
		}
	}
	return len(seen)
}

func headValues(c *Column, n int) []any {
	out := make([]any, 0, n)
	for i, v := range c.Values {
		if len(out) == n {
			break
		}
		if v.Valid {
			out = append(out, c.Interface(i))
		}
	}
	return out
}

func tailValues(c *Column, n int) []any {
	out := make([]any, 0, n)
	for i := len(c.Values) - 1; i >= 0 && len(out) < n; i-- {
		if c.Values[i].Valid {
			out = append(out, c.Interface(i))
		}
	}
	slices.Reverse(out)
	return out
}

func numbers(c *Column) []float64 {
	out := make([]float64, 0, len(c.Values))
	for i := range c.Values {
		if f, ok := c.Number(i); ok {
			out = append(out, f)
		}
	}
	return out
}

func numericStats(nums []float64) NumericStats {
	if len(nums) == 0 {
		return NumericStats{}
	}
	sorted := slices.Clone(nums)
	slices.Sort(sorted)

	var sum float64
	for _, f := range nums {
		sum += f
	}
	mean := sum / float64(len(nums))

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	return NumericStats{
		Min:    ptr(sorted[0]),
		Max:    ptr(sorted[len(sorted)-1]),
		Mean:   ptr(mean),
		Median: ptr(median),
	}
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(nums []float64) *float64 {
	n := len(nums)
	if n < 2 {
		return nil
	}
	var sum float64
	for _, f := range nums {
		sum += f
	}
	mean := sum / float64(n)
	var sq float64
	for _, f := range nums {
		d := f - mean
		sq += d * d
	}
	return ptr(math.Sqrt(sq / float64(n-1)))
}

func textStats(c *Column) *TextStats {
	var (
		count, total int
		minLen       = math.MaxInt
		maxLen       int
	)
	for _, v := range c.Values {
		if !v.Valid {
			continue
		}
		l := utf8.RuneCountInString(v.Str)
		count++
		total += l
		minLen = min(minLen, l)
		maxLen = max(maxLen, l)
	}
	if count == 0 {
		return nil
	}
	return &TextStats{
		AvgTextLength: float64(total) / float64(count),
		MinTextLength: minLen,
		MaxTextLength: maxLen,
	}
}

func dateDetail(c *Column) *DateDetail {
	d := &DateDetail{}
	first := true
	var lo, hi Value
	for _, v := range c.Values {
		if !v.Valid {
			continue
		}
		if first {
			lo, hi, first = v, v, false
			continue
		}
		if v.Time.Before(lo.Time) {
			lo = v
		}
		if v.Time.After(hi.Time) {
			hi = v
		}
	}
	if first {
		return d
	}
	minDate := lo.Time.Format(isoLayout)
	maxDate := hi.Time.Format(isoLayout)
	d.MinDate, d.MaxDate = &minDate, &maxDate
	d.DateRangeDays = int(hi.Time.Sub(lo.Time).Hours() / 24)
	return d
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ptr[T any](v T) *T { return &v }
