package core

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// PreviewRows is the number of records returned with a load result.
const PreviewRows = 10

// Mirror is a secondary, queryable copy of the active dataset. Mirrors are
// best effort: the in-memory session stays authoritative.
type Mirror interface {
	// Replace drops any previous copy and stores table under sessionID.
	Replace(ctx context.Context, sessionID string, table *Table) error
	// Clear drops every stored copy.
	Clear(ctx context.Context) error
	// RowCount returns the number of rows stored for sessionID.
	RowCount(ctx context.Context, sessionID string) (int64, error)
	Close() error
}

// Dataset is an installed, immutable snapshot.
type Dataset struct {
	ID              string
	Table           *Table
	OriginalColumns []string
	Mapping         ColumnMapping
	Coercions       CoercionReport
	LoadedAt        time.Time
}

// LoadResult describes a successful load.
type LoadResult struct {
	ID              string         `json:"file_id"`
	RowCount        int            `json:"total_rows"`
	Columns         []string       `json:"columns"`
	Preview         []Record       `json:"preview_data"`
	OriginalColumns []string       `json:"original_columns"`
	ColumnMapping   ColumnMapping  `json:"column_mapping"`
	Coercions       CoercionReport `json:"coercions,omitempty"`
	Mirrored        bool           `json:"mirrored"`
}

// Session holds at most one dataset. Readers get the current snapshot
// without locking; Load and Clear are serialized.
type Session struct {
	current atomic.Pointer[Dataset]
	mu      sync.Mutex
	mirror  Mirror
	now     func() time.Time
}

// NewSession creates an empty session. mirror may be nil.
func NewSession(mirror Mirror) *Session {
	return &Session{mirror: mirror, now: time.Now}
}

// Load installs a built dataset, replacing the previous one, and copies it
// into the mirror when one is configured. A mirror failure is logged and
// reported through LoadResult.Mirrored; it does not fail the load.
func (s *Session) Load(ctx context.Context, built *BuildResult, originalHeaders []string) *LoadResult {
	ds := &Dataset{
		ID:              uuid.NewString(),
		Table:           built.Table,
		OriginalColumns: append([]string(nil), originalHeaders...),
		Mapping:         built.Mapping,
		Coercions:       built.Coercions,
		LoadedAt:        s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mirrored := false
	if s.mirror != nil {
		if err := s.mirror.Replace(ctx, ds.ID, ds.Table); err != nil {
			slog.Warn("dataset mirror failed", "dataset_id", ds.ID, "error", err)
		} else {
			mirrored = true
		}
	}

	s.current.Store(ds)

	return &LoadResult{
		ID:              ds.ID,
		RowCount:        ds.Table.RowCount(),
		Columns:         ds.Table.ColumnNames(),
		Preview:         headRecords(ds.Table, PreviewRows),
		OriginalColumns: ds.OriginalColumns,
		ColumnMapping:   ds.Mapping,
		Coercions:       ds.Coercions,
		Mirrored:        mirrored,
	}
}

// Current returns the active dataset or ErrNoDataset.
func (s *Session) Current() (*Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return ds, nil
}

// Clear drops the active dataset and the mirror contents. It is safe to
// call when nothing is loaded. The in-memory state is always cleared; the
// returned error only reports a mirror failure.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(nil)
	if s.mirror != nil {
		return s.mirror.Clear(ctx)
	}
	return nil
}

// MirrorRowCount reports how many rows the mirror holds for the active
// dataset. ok is false when there is no mirror or no dataset.
func (s *Session) MirrorRowCount(ctx context.Context) (n int64, ok bool, err error) {
	ds := s.current.Load()
	if s.mirror == nil || ds == nil {
		return 0, false, nil
	}
	n, err = s.mirror.RowCount(ctx, ds.ID)
	return n, err == nil, err
}

func headRecords(t *Table, n int) []Record {
	if n > t.RowCount() {
		n = t.RowCount()
	}
	cols := t.Columns()
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = t.Record(i, cols)
	}
	return out
}
