// Package store implements the secondary dataset mirror on SQL databases.
//
// Each loaded dataset is copied into one table named after its session id.
// Loading a new dataset drops the previous table, so a mirror database holds
// at most one dataset table at a time.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ledgerview/internal/config"
	"github.com/JonMunkholm/ledgerview/internal/core"
)

// TablePrefix starts the name of every mirrored dataset table.
const TablePrefix = "data_"

// TableName returns the mirror table for a session id.
func TableName(sessionID string) string {
	return TablePrefix + strings.ReplaceAll(sessionID, "-", "_")
}

// New opens the mirror selected by cfg. It returns nil for the "none" driver.
func New(ctx context.Context, cfg config.MirrorConfig) (core.Mirror, error) {
	switch cfg.Driver {
	case "sqlite":
		m, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "postgres":
		m, err := OpenPostgres(ctx, cfg.DatabaseURL, cfg.MaxConns, cfg.MaxConnIdleTime)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown mirror driver %q", cfg.Driver)
}

// dialect holds what differs between the SQL backends.
type dialect struct {
	types map[core.Kind]string
	// boolAsInt stores booleans as 0/1.
	boolAsInt bool
}

func (d dialect) columnType(k core.Kind) string {
	if t, ok := d.types[k]; ok {
		return t
	}
	return "TEXT"
}

// cellValue converts row of c to a driver argument; nulls become nil.
func (d dialect) cellValue(c *core.Column, row int) any {
	v := c.Values[row]
	if !v.Valid {
		return nil
	}
	switch c.Kind {
	case core.KindInteger:
		return v.Int
	case core.KindFloat:
		return v.Float
	case core.KindDatetime:
		return v.Time
	case core.KindBoolean:
		if d.boolAsInt {
			if v.Bool {
				return int64(1)
			}
			return int64(0)
		}
		return v.Bool
	}
	return v.Str
}

// indexed reports whether a column gets a secondary index. Text and
// datetime columns are the ones searched and range-filtered.
func indexed(k core.Kind) bool {
	return k == core.KindText || k == core.KindDatetime
}

// quoteIdent quotes a SQL identifier with double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableSQL(d dialect, table string, t *core.Table) string {
	defs := make([]string, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		defs = append(defs, quoteIdent(c.Name)+" "+d.columnType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func indexName(table, column string) string {
	return "idx_" + table + "_" + column
}
