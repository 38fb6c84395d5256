package web

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/ledgerview/internal/core"
	"github.com/JonMunkholm/ledgerview/internal/logging"
	"github.com/go-chi/render"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before parts spill to temporary files.
const multipartMemory = 32 << 20

// multipartOverhead allows for form boundaries and extra fields on top of
// the file itself.
const multipartOverhead = 1 << 20

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*core.LoadResult
}

// MessageResponse is a bare success acknowledgement.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleUpload loads a multipart "file" as the active dataset. The optional
// "file_type" field overrides the type derived from the extension.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: limit is %d MB", core.ErrFileTooLarge, maxSize>>20))
			return
		}
		s.respondError(w, r, noFile("invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, noFile("no file provided"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.respondError(w, r, noFile("no file provided"))
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(s.cfg.Upload.AllowedExtensions, ext) {
		s.respondError(w, r, fmt.Errorf("%w: %q, accepted: %s",
			core.ErrUnsupportedFormat, ext, strings.Join(s.cfg.Upload.AllowedExtensions, ", ")))
		return
	}
	if header.Size > maxSize {
		s.respondError(w, r, fmt.Errorf("%w: limit is %d MB", core.ErrFileTooLarge, maxSize>>20))
		return
	}

	format, err := uploadFormat(r.FormValue("file_type"), header.Filename)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("upload received",
		"filename", header.Filename,
		"size", header.Size,
		"format", format,
	)

	result, err := s.service.LoadDataset(r.Context(), file, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	render.JSON(w, r, UploadResponse{
		Success:    true,
		Message:    "File uploaded successfully",
		LoadResult: result,
	})
}

// uploadFormat prefers an explicit file_type over the filename extension.
func uploadFormat(fileType, filename string) (core.SourceFormat, error) {
	if strings.TrimSpace(fileType) != "" {
		return core.ParseSourceFormat(fileType)
	}
	return core.FormatFromFilename(filename)
}

func noFile(msg string) error {
	return &core.ValidationError{Fields: []core.FieldError{{Field: "file", Message: msg}}}
}

// handleClear drops the active dataset. It succeeds when nothing is loaded.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearDataset(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Success: true, Message: "Data cleared successfully"})
}
