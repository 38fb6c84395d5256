package core

import (
	"fmt"
	"strings"
)

// Column name fragments that trigger coercion. Matching is a
// case-insensitive substring test on the normalized name.
var (
	DateKeywords   = []string{"data", "date", "giorno"}
	AmountKeywords = []string{"importo", "amount", "euro", "€"}
)

// Coercion summarizes what happened when a column was forced to a type.
type Coercion struct {
	Column    string `json:"column"`
	Target    Kind   `json:"target"`
	Converted int    `json:"converted"`
	// Nulled counts non-null source cells that failed to parse.
	Nulled  int    `json:"nulled"`
	Warning string `json:"warning,omitempty"`
}

// CoercionReport lists the coercions applied during one load.
type CoercionReport []Coercion

// Failed returns the coercions in which no value could be parsed.
func (r CoercionReport) Failed() []Coercion {
	var out []Coercion
	for _, c := range r {
		if c.Warning != "" {
			out = append(out, c)
		}
	}
	return out
}

// BuildResult is a typed dataset ready to be installed in a session.
type BuildResult struct {
	Table     *Table
	Mapping   ColumnMapping
	Coercions CoercionReport
}

// BuildTable normalizes the headers of raw, drops rows that are entirely
// null and assigns every column a Kind. Columns whose names contain a date
// keyword become datetime and those containing an amount keyword become
// float; cells that do not parse turn into nulls without removing rows.
func BuildTable(raw *RawTable) (*BuildResult, error) {
	names := UniqueNames(NormalizeHeaders(raw.Headers))
	rows := dropNullRows(raw.Rows)

	columns := make([]*Column, len(names))
	var report CoercionReport
	for i, name := range names {
		cells := make([]string, len(rows))
		for r, row := range rows {
			cells[r] = row[i]
		}

		switch {
		case matchesAny(name, AmountKeywords):
			col, c := coerceAmount(name, cells)
			columns[i], report = col, append(report, c)
		case matchesAny(name, DateKeywords) || raw.DateColumns[i]:
			col, c := coerceDate(name, cells, raw.Spreadsheet)
			columns[i], report = col, append(report, c)
		default:
			columns[i] = typeColumn(name, cells)
		}
	}

	table, err := NewTable(columns)
	if err != nil {
		return nil, fmt.Errorf("build table: %w", err)
	}
	return &BuildResult{
		Table:     table,
		Mapping:   BuildColumnMapping(raw.Headers, names),
		Coercions: report,
	}, nil
}

func matchesAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func dropNullRows(rows [][]string) [][]string {
	kept := rows[:0:0]
	for _, row := range rows {
		for _, cell := range row {
			if !IsNullToken(cell) {
				kept = append(kept, row)
				break
			}
		}
	}
	return kept
}

// InferKind picks the narrowest kind every non-null cell parses as:
// integer, then float, then boolean, otherwise text. A column without
// non-null cells is text.
func InferKind(cells []string) Kind {
	allInt, allFloat, allBool := true, true, true
	seen := false
	for _, c := range cells {
		if IsNullToken(c) {
			continue
		}
		seen = true
		if allInt {
			_, allInt = parseInt(c)
		}
		if allFloat {
			_, allFloat = parseFloat(c)
		}
		if allBool {
			_, allBool = parseBool(c)
		}
		if !allInt && !allFloat && !allBool {
			return KindText
		}
	}

	switch {
	case !seen:
		return KindText
	case allInt:
		return KindInteger
	case allFloat:
		return KindFloat
	case allBool:
		return KindBoolean
	}
	return KindText
}

func typeColumn(name string, cells []string) *Column {
	col := &Column{Name: name, Kind: InferKind(cells), Values: make([]Value, len(cells))}
	for i, c := range cells {
		if IsNullToken(c) {
			continue
		}
		switch col.Kind {
		case KindInteger:
			n, _ := parseInt(c)
			col.Values[i] = IntValue(n)
		case KindFloat:
			f, _ := parseFloat(c)
			col.Values[i] = FloatValue(f)
		case KindBoolean:
			b, _ := parseBool(c)
			col.Values[i] = BoolValue(b)
		default:
			col.Values[i] = TextValue(c)
		}
	}
	return col
}

func coerceDate(name string, cells []string, spreadsheet bool) (*Column, Coercion) {
	col := &Column{Name: name, Kind: KindDatetime, Values: make([]Value, len(cells))}
	rep := Coercion{Column: name, Target: KindDatetime}
	for i, c := range cells {
		if IsNullToken(c) {
			continue
		}
		if t, ok := ParseDate(c, spreadsheet); ok {
			col.Values[i] = TimeValue(t)
			rep.Converted++
		} else {
			rep.Nulled++
		}
	}
	if rep.Converted == 0 && rep.Nulled > 0 {
		rep.Warning = "no value could be parsed as a date"
	}
	return col, rep
}

func coerceAmount(name string, cells []string) (*Column, Coercion) {
	col := &Column{Name: name, Kind: KindFloat, Values: make([]Value, len(cells))}
	rep := Coercion{Column: name, Target: KindFloat}
	for i, c := range cells {
		if IsNullToken(c) {
			continue
		}
		if f, ok := ParseAmount(c); ok {
			col.Values[i] = FloatValue(f)
			rep.Converted++
		} else {
			rep.Nulled++
		}
	}
	if rep.Converted == 0 && rep.Nulled > 0 {
		rep.Warning = "no value could be parsed as an amount"
	}
	return col, rep
}
