package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindText     Kind = "text"
	KindDatetime Kind = "datetime"
	KindBoolean  Kind = "boolean"
)

// IsNumeric reports whether the kind holds numbers.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat
}

// Datetime layouts used when a value is rendered as text.
const (
	isoLayout  = "2006-01-02T15:04:05"
	textLayout = "2006-01-02 15:04:05"
)

// Value is a single cell. Which field is meaningful depends on the owning
// column's Kind; Valid=false marks a null regardless of kind.
type Value struct {
	Valid bool
	Int   int64
	Float float64
	Str   string
	Time  time.Time
	Bool  bool
}

// Null is the null cell.
var Null = Value{}

func IntValue(i int64) Value { return Value{Valid: true, Int: i} }
func TextValue(s string) Value { return Value{Valid: true, Str: s} }
func TimeValue(t time.Time) Value { return Value{Valid: true, Time: t} }
func BoolValue(b bool) Value { return Value{Valid: true, Bool: b} }

// FloatValue returns a float cell; NaN and infinities become null.
func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null
	}
	return Value{Valid: true, Float: f}
}

// Column is a named, typed vector of cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// Interface returns the JSON-friendly representation of row i: nil, int64,
// float64, string (datetimes as ISO-8601) or bool.
func (c *Column) Interface(i int) any {
	v := c.Values[i]
	if !v.Valid {
		return nil
	}
	switch c.Kind {
	case KindInteger:
		return v.Int
	case KindFloat:
		return v.Float
	case KindDatetime:
		return v.Time.Format(isoLayout)
	case KindBoolean:
		return v.Bool
	default:
		return v.Str
	}
}

// Text renders row i as plain text. ok is false for nulls.
func (c *Column) Text(i int) (s string, ok bool) {
	v := c.Values[i]
	if !v.Valid {
		return "", false
	}
	switch c.Kind {
	case KindInteger:
		return strconv.FormatInt(v.Int, 10), true
	case KindFloat:
		return formatFloat(v.Float), true
	case KindDatetime:
		return v.Time.Format(textLayout), true
	case KindBoolean:
		return strconv.FormatBool(v.Bool), true
	default:
		return v.Str, true
	}
}

// cellText renders row i like Text, with dates of a date-only column
// written as YYYY-MM-DD. Nulls render as "".
func cellText(c *Column, i int, dateOnly bool) string {
	if dateOnly && c.Values[i].Valid {
		return c.Values[i].Time.Format(time.DateOnly)
	}
	s, _ := c.Text(i)
	return s
}

// dateOnlyColumns flags the datetime columns whose values are all at midnight.
func dateOnlyColumns(cols []*Column) []bool {
	out := make([]bool, len(cols))
	for i, c := range cols {
		out[i] = c.Kind == KindDatetime && isDateOnly(c)
	}
	return out
}

func isDateOnly(c *Column) bool {
	for _, v := range c.Values {
		if !v.Valid {
			continue
		}
		h, m, s := v.Time.Clock()
		if h != 0 || m != 0 || s != 0 || v.Time.Nanosecond() != 0 {
			return false
		}
	}
	return true
}

// Number returns row i as a float64 for numeric kinds.
func (c *Column) Number(i int) (float64, bool) {
	v := c.Values[i]
	if !v.Valid {
		return 0, false
	}
	switch c.Kind {
	case KindInteger:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// formatFloat keeps a trailing ".0" on integral values so 10 reads as 10.0.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		s += ".0"
	}
	return s
}

// Table is an immutable, column-oriented dataset. All columns have the same
// length and unique names.
type Table struct {
	columns []*Column
	byName  map[string]*Column
	rows    int
}

// NewTable validates the column set and builds a Table.
func NewTable(columns []*Column) (*Table, error) {
	t := &Table{
		columns: columns,
		byName:  make(map[string]*Column, len(columns)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := t.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", c.Name, c.Len(), t.rows)
		}
		t.byName[c.Name] = c
	}
	return t, nil
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return t.rows }

// Columns returns the columns in order. Callers must not modify them.
func (t *Table) Columns() []*Column { return t.columns }

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// FirstDatetimeColumn returns the first column of kind datetime, if any.
func (t *Table) FirstDatetimeColumn() *Column {
	for _, c := range t.columns {
		if c.Kind == KindDatetime {
			return c
		}
	}
	return nil
}

// Record builds the ordered record for one row over the given columns.
func (t *Table) Record(row int, cols []*Column) Record {
	r := Record{keys: make([]string, len(cols)), values: make([]any, len(cols))}
	for i, c := range cols {
		r.keys[i] = c.Name
		r.values[i] = c.Interface(row)
	}
	return r
}

// Record is one row as an ordered key/value mapping. It marshals to a JSON
// object whose keys follow column order.
type Record struct {
	keys   []string
	values []any
}

// Keys returns the field names in order.
func (r Record) Keys() []string { return r.keys }

// Get returns the value for key.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return nil, false
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ColumnPair links an original header to its normalized column name.
type ColumnPair struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
}

// ColumnMapping is positional: entry i describes source column i.
type ColumnMapping []ColumnPair

// SortOrder is the direction of a sort.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FilterSpec describes one query over the active dataset.
type FilterSpec struct {
	Search    string     `json:"search,omitempty"`
	DateFrom  *time.Time `json:"date_from,omitempty"`
	DateTo    *time.Time `json:"date_to,omitempty"`
	Columns   []string   `json:"columns,omitempty"`
	SortBy    string     `json:"sort_by,omitempty"`
	SortOrder SortOrder  `json:"sort_order" validate:"omitempty,oneof=asc desc"`
	Page      int        `json:"page" validate:"min=1"`
	PageSize  int        `json:"page_size" validate:"min=1,max=1000"`
}

// DefaultFilterSpec returns a spec for the first page with the given size.
func DefaultFilterSpec(pageSize int) FilterSpec {
	return FilterSpec{SortOrder: SortAsc, Page: 1, PageSize: pageSize}
}

// QueryResult is one page of a query.
type QueryResult struct {
	Data           []Record   `json:"data"`
	TotalRows      int        `json:"total_rows"`
	TotalPages     int        `json:"total_pages"`
	CurrentPage    int        `json:"current_page"`
	PageSize       int        `json:"page_size"`
	Columns        []string   `json:"columns"`
	FiltersApplied FilterSpec `json:"filters_applied"`
}
