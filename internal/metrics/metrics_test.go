package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Observe(t *testing.T) {
	r := New()

	r.ObserveLoad(core.FormatCSV, 120, 30*time.Millisecond, nil)
	r.ObserveLoad(core.FormatCSV, 0, time.Millisecond, errors.New("bad file"))
	r.ObserveQuery("data", time.Millisecond, nil)
	r.ObserveExport(core.ExportXLSX, 40, nil)
	r.ObserveExport(core.ExportXLSX, 0, errors.New("disk full"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.loads.WithLabelValues("csv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.loads.WithLabelValues("csv", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.loadedRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.queries.WithLabelValues("data", "ok")))
	assert.Equal(t, 40.0, testutil.ToFloat64(r.exportedRows.WithLabelValues("xlsx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.exports.WithLabelValues("xlsx", "error")))
}

func TestRegistry_MiddlewareUsesRoutePattern(t *testing.T) {
	r := New()

	router := chi.NewRouter()
	router.Use(r.Middleware)
	router.Get("/api/v1/columns/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, name := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/columns/"+name, nil))
	}

	got := testutil.ToFloat64(r.httpRequests.WithLabelValues("/api/v1/columns/{name}", "GET", "404"))
	assert.Equal(t, 2.0, got)
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.ObserveQuery("stats", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `ledgerview_queries_total{op="stats",outcome="ok"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
