package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/config"
	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *core.Table {
	t.Helper()
	when := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tbl, err := core.NewTable([]*core.Column{
		{Name: "id", Kind: core.KindInteger, Values: []core.Value{core.IntValue(1), core.IntValue(2), core.Null}},
		{Name: "importo", Kind: core.KindFloat, Values: []core.Value{core.FloatValue(10.5), core.Null, core.FloatValue(-3)}},
		{Name: "descrizione", Kind: core.KindText, Values: []core.Value{core.TextValue(`bonifico "sepa"`), core.TextValue("pos"), core.Null}},
		{Name: "data", Kind: core.KindDatetime, Values: []core.Value{core.TimeValue(when), core.Null, core.TimeValue(when)}},
		{Name: "pagato", Kind: core.KindBoolean, Values: []core.Value{core.BoolValue(true), core.BoolValue(false), core.Null}},
	})
	require.NoError(t, err)
	return tbl
}

func openTestSQLite(t *testing.T) *SQLiteMirror {
	t.Helper()
	m, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "data_3f2a_11ee_b1", TableName("3f2a-11ee-b1"))
	assert.Equal(t, "data_plain", TableName("plain"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"name"`, quoteIdent("name"))
	assert.Equal(t, `"my ""col"""`, quoteIdent(`my "col"`))
}

func TestDialect_CellValue(t *testing.T) {
	tbl := sampleTable(t)
	cols := tbl.Columns()

	assert.Equal(t, int64(1), sqliteDialect.cellValue(cols[0], 0))
	assert.Nil(t, sqliteDialect.cellValue(cols[0], 2))
	assert.Equal(t, 10.5, sqliteDialect.cellValue(cols[1], 0))
	assert.Equal(t, "pos", sqliteDialect.cellValue(cols[2], 1))
	assert.Equal(t, int64(1), sqliteDialect.cellValue(cols[4], 0))
	assert.Equal(t, true, postgresDialect.cellValue(cols[4], 0))
	assert.Equal(t, "DOUBLE PRECISION", postgresDialect.columnType(core.KindFloat))
}

func TestSQLiteMirror_ReplaceAndCount(t *testing.T) {
	ctx := context.Background()
	m := openTestSQLite(t)

	require.NoError(t, m.Replace(ctx, "first-id", sampleTable(t)))
	n, err := m.RowCount(ctx, "first-id")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var desc string
	require.NoError(t, m.DB().QueryRowContext(ctx,
		`SELECT descrizione FROM data_first_id WHERE id = 1`).Scan(&desc))
	assert.Equal(t, `bonifico "sepa"`, desc)

	var nulls int
	require.NoError(t, m.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM data_first_id WHERE importo IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)
}

func TestSQLiteMirror_ReplaceDropsPrevious(t *testing.T) {
	ctx := context.Background()
	m := openTestSQLite(t)

	require.NoError(t, m.Replace(ctx, "one", sampleTable(t)))
	require.NoError(t, m.Replace(ctx, "two", sampleTable(t)))

	tables, err := m.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"data_two"}, tables)

	_, err = m.RowCount(ctx, "one")
	assert.Error(t, err)
}

func TestSQLiteMirror_Clear(t *testing.T) {
	ctx := context.Background()
	m := openTestSQLite(t)

	require.NoError(t, m.Replace(ctx, "one", sampleTable(t)))
	require.NoError(t, m.Clear(ctx))
	require.NoError(t, m.Clear(ctx))

	tables, err := m.Tables(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestSQLiteMirror_HeaderOnlyTable(t *testing.T) {
	ctx := context.Background()
	m := openTestSQLite(t)

	tbl, err := core.NewTable([]*core.Column{{Name: "a", Kind: core.KindText}})
	require.NoError(t, err)
	require.NoError(t, m.Replace(ctx, "empty", tbl))

	n, err := m.RowCount(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	m, err := New(ctx, config.MirrorConfig{Driver: "none"})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = New(ctx, config.MirrorConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, "unknown mirror driver")

	_, err = New(ctx, config.MirrorConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "MIRROR_DATABASE_URL")

	m, err = New(ctx, config.MirrorConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.NoError(t, m.Close())
}
