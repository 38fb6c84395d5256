package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresDialect = dialect{
	types: map[core.Kind]string{
		core.KindInteger:  "BIGINT",
		core.KindFloat:    "DOUBLE PRECISION",
		core.KindText:     "TEXT",
		core.KindDatetime: "TIMESTAMP",
		core.KindBoolean:  "BOOLEAN",
	},
}

// PostgresMirror keeps the dataset copy in a PostgreSQL schema.
type PostgresMirror struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and verifies the connection.
func OpenPostgres(ctx context.Context, databaseURL string, maxConns int, maxIdle time.Duration) (*PostgresMirror, error) {
	if databaseURL == "" {
		return nil, errors.New("postgres mirror requires MIRROR_DATABASE_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	if maxIdle > 0 {
		poolConfig.MaxConnIdleTime = maxIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(databaseURL); err == nil {
		slog.Info("postgres mirror connected", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("postgres mirror connected")
	}
	return &PostgresMirror{pool: pool}, nil
}

// Replace drops every previous dataset table and bulk-copies t under sessionID.
func (m *PostgresMirror) Replace(ctx context.Context, sessionID string, t *core.Table) error {
	table := TableName(sessionID)

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := dropPostgresTables(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, createTableSQL(postgresDialect, table, t)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	cols := t.Columns()
	if len(cols) > 0 && t.RowCount() > 0 {
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		src := pgx.CopyFromSlice(t.RowCount(), func(row int) ([]any, error) {
			vals := make([]any, len(cols))
			for i, c := range cols {
				vals[i] = postgresDialect.cellValue(c, row)
			}
			return vals, nil
		})
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, names, src); err != nil {
			return fmt.Errorf("copy rows into %s: %w", table, err)
		}
	}

	for _, c := range cols {
		if !indexed(c.Kind) {
			continue
		}
		stmt := fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			pgx.Identifier{indexName(table, c.Name)}.Sanitize(),
			pgx.Identifier{table}.Sanitize(),
			pgx.Identifier{c.Name}.Sanitize())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create index on %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("dataset mirrored", "table", table, "rows", t.RowCount())
	return nil
}

// Clear drops every dataset table.
func (m *PostgresMirror) Clear(ctx context.Context) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := dropPostgresTables(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RowCount returns the number of rows stored for sessionID.
func (m *PostgresMirror) RowCount(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + pgx.Identifier{TableName(sessionID)}.Sanitize()
	if err := m.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Close releases the pool.
func (m *PostgresMirror) Close() error {
	m.pool.Close()
	return nil
}

func dropPostgresTables(ctx context.Context, tx pgx.Tx) error {
	rows, err := tx.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name LIKE 'data\_%'`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, name := range names {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}
	return nil
}
