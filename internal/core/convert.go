package core

// convert.go turns raw cell text into typed values.
//
// Source files come from spreadsheets and bank portals, so the parsers are
// forgiving:
//   - dates in ISO, day-first European, textual and compact forms
//   - two-digit years resolved with a pivot
//   - Excel serial dates for spreadsheet sources
//   - amounts with currency symbols, either decimal separator and accounting
//     parentheses for negatives
//
// Every Parse* function reports ok=false instead of returning an error; the
// inference pass decides what a failed parse means.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// numericRegex validates that a string is a plain decimal number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// integerRegex matches optionally signed base-10 integers.
var integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 20

// Date layouts, tried in order. Day-first layouts come before month-first
// ones so 03/04/2024 reads as 3 April.
var (
	isoDateLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"2006/01/02 15:04:05",
		"2006.01.02",
	}
	fourDigitYearLayouts = []string{
		"2/1/2006", "2/1/2006 15:04:05", "2/1/2006 15:04",
		"2-1-2006", "2-1-2006 15:04:05", "2-1-2006 15:04",
		"2.1.2006", "2.1.2006 15:04:05", "2.1.2006 15:04",
		"1/2/2006", "1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "1/2/2006 3:04 PM",
		"2 Jan 2006", "2 January 2006", "Jan 2, 2006", "January 2, 2006",
		"02-Jan-2006", "Mon, 02 Jan 2006",
		"20060102",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "2-1-06", "2.1.06", "02-Jan-06", "1/2/06",
	}
)

// Excel serial day numbers accepted as dates: 1900-01-01 through 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// nullTokens are the cell texts read as missing values.
var nullTokens = map[string]bool{
	"":         true,
	"#N/A":     true,
	"#N/A N/A": true,
	"#NA":      true,
	"-1.#IND":  true,
	"-1.#QNAN": true,
	"-NaN":     true,
	"-nan":     true,
	"1.#IND":   true,
	"1.#QNAN":  true,
	"<NA>":     true,
	"N/A":      true,
	"NA":       true,
	"NULL":     true,
	"NaN":      true,
	"None":     true,
	"n/a":      true,
	"nan":      true,
	"null":     true,
}

// IsNullToken reports whether a raw cell represents a missing value.
func IsNullToken(s string) bool {
	return nullTokens[strings.TrimSpace(s)]
}

// ParseDate parses a date or datetime. When fromSpreadsheet is set, plain
// numbers are read as Excel serial dates.
func ParseDate(s string, fromSpreadsheet bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if fromSpreadsheet && numericRegex.MatchString(s) {
		if t, ok := excelSerialToTime(s); ok {
			return t, true
		}
	}

	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

func excelSerialToTime(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t.Round(time.Second).UTC(), true
}

// ParseAmount parses a monetary amount.
//
// Currency symbols and spaces are dropped and "(12.50)" is negative. When
// both ',' and '.' appear, the one used last is the decimal separator. A
// single ',' is a decimal comma; a separator repeated more than once only
// groups thousands.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = amountCleaner.Replace(s)
	s = normalizeSeparators(s)

	if negative {
		if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			return 0, false
		}
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, FloatValue(f).Valid
}

var amountCleaner = strings.NewReplacer(
	"€", "", "$", "", "£", "",
	"EUR", "", "USD", "", "GBP", "",
	" ", "", "\u00a0", "", "'", "",
)

func normalizeSeparators(s string) string {
	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// parseInt accepts optionally signed base-10 integers only.
func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if !integerRegex.MatchString(s) {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	return i, err == nil
}

// parseFloat accepts plain decimal and scientific notation only.
func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, FloatValue(f).Valid
}

// parseBool accepts true/false in any letter case.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
