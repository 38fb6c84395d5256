package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func (s *Server) handleListColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := s.service.GetCurrentColumns()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, cols)
}

// handleColumnDetail profiles one column. The name is path-unescaped by chi.
func (s *Server) handleColumnDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetColumnDetail(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

func (s *Server) handleQueryData(w http.ResponseWriter, r *http.Request) {
	spec, err := s.parseFilter(r, true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	result, err := s.service.QueryData(spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.GetDatasetStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}
