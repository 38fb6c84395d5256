package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/ledgerview/internal/core"
	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	types: map[core.Kind]string{
		core.KindInteger:  "INTEGER",
		core.KindFloat:    "REAL",
		core.KindText:     "TEXT",
		core.KindDatetime: "TIMESTAMP",
		core.KindBoolean:  "BOOLEAN",
	},
	boolAsInt: true,
}

// SQLiteMirror keeps the dataset copy in a local SQLite file.
type SQLiteMirror struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteMirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers and keeps in-memory databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	slog.Info("sqlite mirror opened", "path", path)
	return &SQLiteMirror{db: db, path: path}, nil
}

// DB exposes the underlying handle for read-only inspection.
func (m *SQLiteMirror) DB() *sql.DB { return m.db }

// Replace drops every previous dataset table and stores t under sessionID.
func (m *SQLiteMirror) Replace(ctx context.Context, sessionID string, t *core.Table) error {
	table := TableName(sessionID)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := dropDatasetTables(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(sqliteDialect, table, t)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if err := insertRows(ctx, tx, table, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	m.createIndexes(ctx, table, t)
	slog.Debug("dataset mirrored", "table", table, "rows", t.RowCount())
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, table string, t *core.Table) error {
	cols := t.Columns()
	if len(cols) == 0 || t.RowCount() == 0 {
		return nil
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(names, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for row := 0; row < t.RowCount(); row++ {
		for i, c := range cols {
			args[i] = sqliteDialect.cellValue(c, row)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", row, err)
		}
	}
	return nil
}

// createIndexes adds indexes on searchable columns. Failures are logged;
// the copy is usable without them.
func (m *SQLiteMirror) createIndexes(ctx context.Context, table string, t *core.Table) {
	for _, c := range t.Columns() {
		if !indexed(c.Kind) {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(indexName(table, c.Name)), quoteIdent(table), quoteIdent(c.Name))
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			slog.Warn("mirror index creation failed", "table", table, "column", c.Name, "error", err)
		}
	}
}

// Clear drops every dataset table.
func (m *SQLiteMirror) Clear(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := dropDatasetTables(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// RowCount returns the number of rows stored for sessionID.
func (m *SQLiteMirror) RowCount(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + quoteIdent(TableName(sessionID))
	if err := m.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Tables lists the dataset tables currently stored.
func (m *SQLiteMirror) Tables(ctx context.Context) ([]string, error) {
	return listDatasetTables(ctx, m.db)
}

// Close closes the database.
func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listDatasetTables(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE ? ESCAPE '\'`,
		`data\_%`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func dropDatasetTables(ctx context.Context, tx *sql.Tx) error {
	names, err := listDatasetTables(ctx, tx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}
	return nil
}
