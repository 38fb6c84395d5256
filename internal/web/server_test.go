package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/config"
	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/JonMunkholm/ledgerview/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Data Operazione;Descrizione;Importo\n" +
	"15/01/2024;Bonifico SEPA;1.234,56\n" +
	"16/01/2024;Pagamento POS;-20,50\n" +
	"17/01/2024;bonifico estero;n/a\n"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{
			MaxFileSize:       1 << 20,
			AllowedExtensions: []string{".csv", ".xls", ".xlsx"},
			MaxConcurrent:     2,
			MaxWaitTime:       time.Second,
		},
		Query:    config.QueryConfig{DefaultPageSize: 100, MaxPageSize: 1000},
		Security: config.SecurityConfig{AllowedOrigins: []string{"http://localhost:3000"}, EnableCSP: true},
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	reg := metrics.New()
	svc := core.NewService(core.Options{
		Metrics:         reg,
		MaxFileSize:     cfg.Upload.MaxFileSize,
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
		ExportDir:       t.TempDir(),
	})
	return NewServer(svc, reg, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, s, httptest.NewRequest(http.MethodGet, target, nil))
}

func uploadRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func loadStatement(t *testing.T, s *Server) {
	t.Helper()
	rec := do(t, s, uploadRequest(t, "estratto.csv", statementCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestInfoAndHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[InfoResponse](t, rec)
	assert.Equal(t, ServiceVersion, info.Version)

	rec = get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, ServiceName, health.Service)
	assert.False(t, health.Dataset.Loaded)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestReadsWithoutDataset(t *testing.T) {
	s := newTestServer(t, nil)

	for _, target := range []string{
		"/api/v1/columns",
		"/api/v1/columns/importo",
		"/api/v1/data",
		"/api/v1/data/stats",
		"/api/v1/export",
		"/api/v1/export/preview",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, s, target)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, "DATA001", body.Code)
			assert.NotEmpty(t, body.Action)
		})
	}
}

func TestUploadAndQuery(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, uploadRequest(t, "estratto.csv", statementCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var up struct {
		Success         bool     `json:"success"`
		FileID          string   `json:"file_id"`
		TotalRows       int      `json:"total_rows"`
		Columns         []string `json:"columns"`
		OriginalColumns []string `json:"original_columns"`
		PreviewData     []map[string]any
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.True(t, up.Success)
	assert.NotEmpty(t, up.FileID)
	assert.Equal(t, 3, up.TotalRows)
	assert.Equal(t, []string{"data_operazione", "descrizione", "importo"}, up.Columns)
	assert.Equal(t, []string{"Data Operazione", "Descrizione", "Importo"}, up.OriginalColumns)

	rec = get(t, s, "/api/v1/data?search=BONIFICO&page_size=1&sort_by=data_operazione&sort_order=desc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[struct {
		Data       []map[string]any `json:"data"`
		TotalRows  int              `json:"total_rows"`
		TotalPages int              `json:"total_pages"`
		PageSize   int              `json:"page_size"`
	}](t, rec)
	assert.Equal(t, 2, page.TotalRows)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "bonifico estero", page.Data[0]["descrizione"])

	rec = get(t, s, "/api/v1/data?date_from=2024-01-16&columns=descrizione,%20importo")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page2 := decode[struct {
		Data      []map[string]any `json:"data"`
		TotalRows int              `json:"total_rows"`
	}](t, rec)
	assert.Equal(t, 2, page2.TotalRows)
	require.Len(t, page2.Data, 2)
	assert.Len(t, page2.Data[0], 2)
	assert.Contains(t, page2.Data[0], "importo")

	for query, want := range map[string]int{"%20sepa": 1, "sepa%20": 0} {
		rec = get(t, s, "/api/v1/data?search="+query)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, want, decode[struct {
			TotalRows int `json:"total_rows"`
		}](t, rec).TotalRows, "search=%s", query)
	}

	rec = get(t, s, "/api/v1/data?page=9223372036854775807&page_size=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"data":[]`)

	rec = get(t, s, "/api/v1/columns")
	require.Equal(t, http.StatusOK, rec.Code)
	cols := decode[core.ColumnsOverview](t, rec)
	assert.Equal(t, 3, cols.TotalColumns)

	rec = get(t, s, "/api/v1/columns/importo")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"null_count":1`)

	rec = get(t, s, "/api/v1/data/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"columns_info"`)

	rec = get(t, s, "/health")
	health := decode[HealthResponse](t, rec)
	assert.True(t, health.Dataset.Loaded)
	assert.Equal(t, up.FileID, health.Dataset.DatasetID)
}

func TestQueryValidation(t *testing.T) {
	s := newTestServer(t, nil)
	loadStatement(t, s)

	tests := []struct {
		name   string
		target string
		status int
		code   string
		field  string
	}{
		{"bad date", "/api/v1/data?date_from=15-01-2024", http.StatusBadRequest, "VAL001", "date_from"},
		{"non numeric page", "/api/v1/data?page=abc", http.StatusBadRequest, "VAL003", "page"},
		{"page size over limit", "/api/v1/data?page_size=5000", http.StatusBadRequest, "VAL003", "page_size"},
		{"bad sort order", "/api/v1/data?sort_order=up", http.StatusBadRequest, "VAL002", "sort_order"},
		{"unknown column", "/api/v1/columns/saldo", http.StatusNotFound, "COL001", ""},
		{"bad export format", "/api/v1/export?format=pdf", http.StatusBadRequest, "VAL002", "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, body.Code)
			if tt.field != "" {
				require.NotEmpty(t, body.Details)
				assert.Equal(t, tt.field, body.Details[0].Field)
			}
		})
	}
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{
			name:   "no file",
			req:    uploadRequest(t, "", "", map[string]string{"file_type": "csv"}),
			status: http.StatusBadRequest,
			code:   "FILE004",
		},
		{
			name:   "extension not allowed",
			req:    uploadRequest(t, "notes.txt", "a,b\n1,2\n", nil),
			status: http.StatusBadRequest,
			code:   "FILE003",
		},
		{
			name:   "file too large",
			req:    uploadRequest(t, "big.csv", statementCSV+statementCSV, nil),
			status: http.StatusRequestEntityTooLarge,
			code:   "FILE001",
		},
		{
			name:   "unknown file_type override",
			req:    uploadRequest(t, "a.csv", "a\n1\n", map[string]string{"file_type": "ods"}),
			status: http.StatusBadRequest,
			code:   "FILE003",
		},
		{
			name:   "ragged csv",
			req:    uploadRequest(t, "a.csv", "a,b\n1,2,3\n", nil),
			status: http.StatusBadRequest,
			code:   "FILE002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := get(t, s, "/health")
	assert.False(t, decode[HealthResponse](t, rec).Dataset.Loaded)
}

func TestFileTypeOverride(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(t, s, uploadRequest(t, "export.xlsx", "a;b\n1;2\n", map[string]string{"file_type": "csv"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_rows":1`)
}

func TestExport(t *testing.T) {
	s := newTestServer(t, nil)
	loadStatement(t, s)

	rec := get(t, s, "/api/v1/export?search=pos&columns=descrizione")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Regexp(t, `^attachment; filename="export_\d{8}_\d{6}_[0-9a-f]{8}\.csv"$`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "descrizione\nPagamento POS\n", rec.Body.String())

	rec = get(t, s, "/api/v1/export?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"), "xlsx is a zip archive")

	rec = get(t, s, "/api/v1/export/preview?date_to=2024-01-15T23:59:59Z")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[struct {
		Total   int      `json:"total_rows_to_export"`
		Columns []string `json:"columns_to_export"`
	}](t, rec)
	assert.Equal(t, 1, preview.Total)
	assert.Len(t, preview.Columns, 3)
}

func TestClear(t *testing.T) {
	s := newTestServer(t, nil)
	loadStatement(t, s)

	rec := do(t, s, httptest.NewRequest(http.MethodDelete, "/api/v1/upload", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[MessageResponse](t, rec).Success)

	rec = get(t, s, "/api/v1/data")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Clearing twice is fine
	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/v1/upload", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOverview(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(t, s, "/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file has been loaded yet")

	loadStatement(t, s)
	rec = get(t, s, "/overview")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>data_operazione</td>")
	assert.Contains(t, body, "Pagamento POS")
	assert.Contains(t, body, "First 3 of 3 rows")
}

func TestOverview_Notice(t *testing.T) {
	page := OverviewPage{
		Status: core.Status{Loaded: true, DatasetID: "abc", Rows: 2, Columns: 1},
		Notice: core.FormatUserError(core.ErrNoDataset),
	}

	var buf bytes.Buffer
	require.NoError(t, Overview(page).Render(context.Background(), &buf))
	body := buf.String()
	assert.Contains(t, body, "<code>abc</code>: 2 rows, 1 columns.")
	assert.Contains(t, body, `<p class="error">No file has been loaded yet (Code: DATA001).`)
	assert.Contains(t, body, "<h2>Columns</h2>")
	assert.NotContains(t, body, "First ")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RPS: 0.01, Burst: 1}
	})

	assert.Equal(t, http.StatusOK, get(t, s, "/health").Code)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMetricsAndUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)
	loadStatement(t, s)

	rec := get(t, s, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ledgerview_dataset_loads_total{format="csv",outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/upload"`)
}
