package core

import (
	"cmp"
	"slices"
	"strings"
)

// Apply runs the query pipeline over t: search, date bounds, column
// projection, stable sort and pagination. spec must already be validated.
func Apply(t *Table, spec FilterSpec) (*QueryResult, error) {
	cols, err := projectColumns(t, spec.Columns)
	if err != nil {
		return nil, err
	}

	rows := FilterRows(t, spec)
	sortRows(t, rows, spec.SortBy, spec.SortOrder)

	total := len(rows)
	result := &QueryResult{
		Data:           []Record{},
		TotalRows:      total,
		TotalPages:     (total + spec.PageSize - 1) / spec.PageSize,
		CurrentPage:    spec.Page,
		PageSize:       spec.PageSize,
		Columns:        t.ColumnNames(),
		FiltersApplied: spec,
	}

	// Compare page numbers before multiplying so huge pages cannot overflow.
	if total == 0 || spec.Page < 1 || spec.Page > result.TotalPages {
		return result, nil
	}
	start := (spec.Page - 1) * spec.PageSize
	end := min(start+spec.PageSize, total)

	result.Data = make([]Record, 0, end-start)
	for _, row := range rows[start:end] {
		result.Data = append(result.Data, t.Record(row, cols))
	}
	return result, nil
}

// FilterRows returns the indices of rows matching the search text and the
// date bounds, in table order.
//
// Search is a literal, case-insensitive substring test against the text of
// every non-null cell; a row matches when any cell does. Datetime columns
// holding only midnight values are rendered as dates. Date bounds apply to
// the first datetime column only and are inclusive; rows with a null date
// fail any bound. Without a datetime column the bounds are ignored.
func FilterRows(t *Table, spec FilterSpec) []int {
	needle := strings.ToLower(spec.Search)

	var dateCol *Column
	if spec.DateFrom != nil || spec.DateTo != nil {
		dateCol = t.FirstDatetimeColumn()
	}

	cols := t.Columns()
	var dateOnly []bool
	if needle != "" {
		dateOnly = dateOnlyColumns(cols)
	}

	rows := make([]int, 0, t.RowCount())
	for row := 0; row < t.RowCount(); row++ {
		if needle != "" && !rowContains(cols, dateOnly, row, needle) {
			continue
		}
		if dateCol != nil && !withinBounds(dateCol.Values[row], spec) {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func rowContains(cols []*Column, dateOnly []bool, row int, needle string) bool {
	for i, c := range cols {
		if !c.Values[row].Valid {
			continue
		}
		if strings.Contains(strings.ToLower(cellText(c, row, dateOnly[i])), needle) {
			return true
		}
	}
	return false
}

func withinBounds(v Value, spec FilterSpec) bool {
	if !v.Valid {
		return false
	}
	if spec.DateFrom != nil && v.Time.Before(*spec.DateFrom) {
		return false
	}
	if spec.DateTo != nil && v.Time.After(*spec.DateTo) {
		return false
	}
	return true
}

// projectColumns resolves the requested column subset. An empty request
// selects every column; repeated names are kept once.
func projectColumns(t *Table, names []string) ([]*Column, error) {
	if len(names) == 0 {
		return t.Columns(), nil
	}
	out := make([]*Column, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		c, ok := t.Column(name)
		if !ok {
			return nil, columnNotFound(name)
		}
		seen[name] = true
		out = append(out, c)
	}
	return out, nil
}

// sortRows orders rows in place by the named column. Unknown or empty
// column names leave the order untouched. The sort is stable and nulls go
// last in both directions.
func sortRows(t *Table, rows []int, by string, order SortOrder) {
	col, ok := t.Column(by)
	if !ok {
		return
	}
	desc := order == SortDesc
	slices.SortStableFunc(rows, func(a, b int) int {
		va, vb := col.Values[a], col.Values[b]
		switch {
		case !va.Valid && !vb.Valid:
			return 0
		case !va.Valid:
			return 1
		case !vb.Valid:
			return -1
		}
		c := compareValues(col.Kind, va, vb)
		if desc {
			return -c
		}
		return c
	})
}

func compareValues(kind Kind, a, b Value) int {
	switch kind {
	case KindInteger:
		return cmp.Compare(a.Int, b.Int)
	case KindFloat:
		return cmp.Compare(a.Float, b.Float)
	case KindDatetime:
		return a.Time.Compare(b.Time)
	case KindBoolean:
		switch {
		case a.Bool == b.Bool:
			return 0
		case b.Bool:
			return -1
		}
		return 1
	}
	return strings.Compare(a.Str, b.Str)
}
