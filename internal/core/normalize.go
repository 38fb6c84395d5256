package core

import (
	"strconv"
	"strings"
)

// NormalizeHeader turns a raw header into a safe column name: surrounding
// whitespace trimmed, every character outside [A-Za-z0-9_] replaced by '_',
// runs of '_' collapsed, leading and trailing '_' removed, lowercased.
// Names starting with a digit get a "col_" prefix and empty results become
// "column".
func NormalizeHeader(raw string) string {
	s := strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if !isIdentRune(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	name := strings.ToLower(strings.Trim(b.String(), "_"))
	switch {
	case name == "":
		return "column"
	case name[0] >= '0' && name[0] <= '9':
		return "col_" + name
	}
	return name
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// NormalizeHeaders normalizes every header, preserving length and order.
// Duplicates are left in place; see UniqueNames.
func NormalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = NormalizeHeader(h)
	}
	return out
}

// UniqueNames renames repeated names by appending _1, _2, ... to the later
// occurrences. A suffix that would collide with an existing name is skipped.
func UniqueNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}

	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		count, dup := seen[n]
		seen[n] = count + 1
		if !dup {
			out[i] = n
			continue
		}
		for k := count; ; k++ {
			candidate := n + "_" + strconv.Itoa(k)
			if !taken[candidate] {
				taken[candidate] = true
				seen[n] = k + 1
				out[i] = candidate
				break
			}
		}
	}
	return out
}

// BuildColumnMapping pairs original headers with final column names.
func BuildColumnMapping(original, normalized []string) ColumnMapping {
	m := make(ColumnMapping, len(original))
	for i := range original {
		m[i] = ColumnPair{Original: original[i], Normalized: normalized[i]}
	}
	return m
}
