package web

import (
	"net/http"

	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/JonMunkholm/ledgerview/internal/logging"
	"github.com/go-chi/render"
)

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string      `json:"status"`
	Service string      `json:"service"`
	Dataset core.Status `json:"dataset"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, InfoResponse{Message: "Ledgerview dataset API", Version: ServiceVersion})
}

// handleHealth always reports healthy while the process serves requests. A
// failing mirror shows up as a missing mirror_rows, not as an unhealthy status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Dataset: s.service.Status(r.Context()),
	})
}

// handleOverview renders an HTML summary of the active dataset.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	page := OverviewPage{Status: s.service.Status(r.Context())}

	if page.Status.Loaded {
		if err := s.fillOverview(&page); err != nil {
			logging.FromContext(r.Context()).Warn("overview incomplete", "error", err)
			page.Notice = core.FormatUserError(err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Overview(page).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}

// fillOverview adds the column list and preview rows. The dataset can be
// cleared between the status read and these calls.
func (s *Server) fillOverview(page *OverviewPage) error {
	cols, err := s.service.GetCurrentColumns()
	if err != nil {
		return err
	}
	preview, err := s.service.QueryData(previewSpec(s.service.DefaultFilter()))
	if err != nil {
		return err
	}
	page.Columns = cols.Columns
	page.Preview = preview
	return nil
}

func previewSpec(spec core.FilterSpec) core.FilterSpec {
	spec.PageSize = overviewRows
	return spec
}
