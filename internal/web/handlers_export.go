package web

import (
	"fmt"
	"net/http"
	"os"

	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/go-chi/render"
)

// handleExport writes the filtered dataset to a file and streams it back as
// an attachment. The file stays in the export directory until the janitor
// removes it.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	spec, err := s.parseFilter(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	format, err := core.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.service.ExportData(r.Context(), spec, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	f, err := os.Open(result.Path)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("open export file: %w", err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.respondError(w, r, fmt.Errorf("stat export file: %w", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	http.ServeContent(w, r, result.Filename, info.ModTime(), f)
}

func (s *Server) handleExportPreview(w http.ResponseWriter, r *http.Request) {
	spec, err := s.parseFilter(r, false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	preview, err := s.service.PreviewExport(spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, preview)
}
