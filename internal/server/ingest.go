package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/legalaid-petitions/internal/pipeline"
)

const uploadField = "documents"

// handleUpload attaches complementary documents sent as multipart form files.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "protocol")
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorCode(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "upload too large")
			return
		}
		writeErrorCode(w, r, http.StatusBadRequest, "BAD_MULTIPART", err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeErrorCode(w, r, http.StatusBadRequest, "NO_DOCUMENTS", "no files in field "+uploadField)
		return
	}
	uploads := make([]pipeline.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, "BAD_MULTIPART", err.Error())
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeErrorCode(w, r, http.StatusBadRequest, "BAD_MULTIPART", err.Error())
			return
		}
		name := strings.TrimSpace(fh.Filename)
		if name == "" {
			name = "documento"
		}
		uploads = append(uploads, pipeline.Upload{
			Name:      name,
			MediaType: fh.Header.Get("Content-Type"),
			Data:      data,
		})
	}

	s.logger.Info("upload.received", "protocol", p, "files", len(uploads))
	status, err := s.pipe.AddComplementaryDocuments(r.Context(), p, uploads)
	if err != nil {
		s.logger.Error("upload.failed", "protocol", p, "error", err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"protocol": p, "status": status, "received": len(uploads)})
}
