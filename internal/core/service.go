package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/logging"
)

// DefaultUploadTimeout bounds a single load when Options.UploadTimeout is zero.
const DefaultUploadTimeout = 5 * time.Minute

// Metrics receives domain events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveLoad(format SourceFormat, rows int, elapsed time.Duration, err error)
	ObserveQuery(op string, elapsed time.Duration, err error)
	ObserveExport(format ExportFormat, rows int, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveLoad(SourceFormat, int, time.Duration, error) {}
func (nopMetrics) ObserveQuery(string, time.Duration, error)            {}
func (nopMetrics) ObserveExport(ExportFormat, int, error)               {}

// Options configures a Service.
type Options struct {
	// Mirror receives a copy of every loaded dataset. Nil disables mirroring.
	Mirror  Mirror
	Metrics Metrics

	MaxFileSize   int64
	UploadTimeout time.Duration
	MaxConcurrent int
	MaxWait       time.Duration

	DefaultPageSize int
	MaxPageSize     int

	ExportDir string
	CSVBOM    bool
}

// Service is the entry point for every dataset operation.
type Service struct {
	session   *Session
	exporter  *Exporter
	limiter   *UploadLimiter
	validator *Validator
	metrics   Metrics
	opts      Options
}

// NewService creates a Service with an empty session.
func NewService(opts Options) *Service {
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 100
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "uploads"
	}

	return &Service{
		session:   NewSession(opts.Mirror),
		exporter:  NewExporter(opts.ExportDir, opts.CSVBOM),
		limiter:   NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		validator: NewValidator(opts.MaxPageSize),
		metrics:   opts.Metrics,
		opts:      opts,
	}
}

// DefaultFilter returns the spec used when a request sets no parameters.
func (s *Service) DefaultFilter() FilterSpec {
	return DefaultFilterSpec(s.opts.DefaultPageSize)
}

// ExportDir returns the directory export files are written to.
func (s *Service) ExportDir() string { return s.exporter.Dir() }

// Limiter exposes the load limiter for shutdown draining.
func (s *Service) Limiter() *UploadLimiter { return s.limiter }

// LoadDataset parses r as format, types its columns and installs the result
// as the active dataset. On failure the previous dataset stays active.
func (s *Service) LoadDataset(ctx context.Context, r io.Reader, format SourceFormat) (result *LoadResult, err error) {
	start := time.Now()
	defer func() {
		rows := 0
		if result != nil {
			rows = result.RowCount
		}
		s.metrics.ObserveLoad(format, rows, time.Since(start), err)
	}()

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.UploadTimeout)
	defer cancel()
	log := logging.WithFields(ctx, "format", format)

	src := NewSizeLimitReader(&contextReader{ctx: ctx, r: r}, s.opts.MaxFileSize)
	raw, err := ReadSource(src, format)
	if err != nil {
		log.Warn("dataset load failed", "bytes", src.BytesRead(), "error", err)
		return nil, err
	}

	built, err := BuildTable(raw)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, c := range built.Coercions.Failed() {
		log.Warn("column coercion produced only nulls", "column", c.Column, "target", c.Target, "nulled", c.Nulled)
	}

	result = s.session.Load(ctx, built, raw.Headers)
	log.Info("dataset loaded",
		"dataset_id", result.ID,
		"rows", result.RowCount,
		"columns", len(result.Columns),
		"bytes", src.BytesRead(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// ClearDataset drops the active dataset. It succeeds when nothing is loaded.
// A mirror failure is logged; the in-memory dataset is cleared regardless.
func (s *Service) ClearDataset(ctx context.Context) error {
	if err := s.session.Clear(ctx); err != nil {
		slog.Warn("mirror clear failed", "error", err)
	}
	slog.Info("dataset cleared")
	return nil
}

// CurrentDataset returns the active dataset snapshot.
func (s *Service) CurrentDataset() (*Dataset, error) {
	return s.session.Current()
}

// GetCurrentColumns lists the columns of the active dataset.
func (s *Service) GetCurrentColumns() (*ColumnsOverview, error) {
	ds, err := s.session.Current()
	if err != nil {
		return nil, err
	}
	return DescribeColumns(ds.Table), nil
}

// GetColumnDetail profiles one column of the active dataset.
func (s *Service) GetColumnDetail(name string) (*ColumnDetail, error) {
	ds, err := s.session.Current()
	if err != nil {
		return nil, err
	}
	return DescribeColumn(ds.Table, name)
}

// QueryData returns one page of the active dataset.
func (s *Service) QueryData(spec FilterSpec) (result *QueryResult, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("data", time.Since(start), err) }()

	ds, err := s.session.Current()
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateFilter(spec); err != nil {
		return nil, err
	}
	return Apply(ds.Table, spec)
}

// GetDatasetStats profiles every column of the active dataset.
func (s *Service) GetDatasetStats(ctx context.Context) (stats *DatasetStats, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery("stats", time.Since(start), err) }()

	ds, err := s.session.Current()
	if err != nil {
		return nil, err
	}
	return DescribeDataset(ctx, ds.Table)
}

// ExportData writes the filtered rows of the active dataset to a file.
// Pagination and sort fields of spec are ignored.
func (s *Service) ExportData(ctx context.Context, spec FilterSpec, format ExportFormat) (result *ExportResult, err error) {
	defer func() {
		rows := 0
		if result != nil {
			rows = result.Rows
		}
		s.metrics.ObserveExport(format, rows, err)
	}()

	ds, err := s.session.Current()
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, ds.Table, spec, format)
}

// PreviewExport describes what ExportData would write for spec.
func (s *Service) PreviewExport(spec FilterSpec) (*ExportPreview, error) {
	ds, err := s.session.Current()
	if err != nil {
		return nil, err
	}
	return PreviewExport(ds.Table, spec)
}

// Status is a snapshot of the service for health reporting.
type Status struct {
	Loaded     bool                `json:"loaded"`
	DatasetID  string              `json:"dataset_id,omitempty"`
	Rows       int                 `json:"rows"`
	Columns    int                 `json:"columns"`
	LoadedAt   *time.Time          `json:"loaded_at,omitempty"`
	MirrorRows *int64              `json:"mirror_rows,omitempty"`
	Uploads    UploadLimiterStatus `json:"uploads"`
}

// Status reports the active dataset and the mirror's copy of it. A mirror
// error is logged and leaves MirrorRows empty.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{Uploads: s.limiter.Status()}

	ds, err := s.session.Current()
	if err != nil {
		return st
	}
	st.Loaded = true
	st.DatasetID = ds.ID
	st.Rows = ds.Table.RowCount()
	st.Columns = len(ds.Table.Columns())
	st.LoadedAt = &ds.LoadedAt

	n, ok, err := s.session.MirrorRowCount(ctx)
	if err != nil {
		slog.Warn("mirror row count failed", "dataset_id", ds.ID, "error", err)
	}
	if ok {
		st.MirrorRows = &n
	}
	return st
}

// contextReader stops a read once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
