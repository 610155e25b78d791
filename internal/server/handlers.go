package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/session"
)

const maxChatBodyBytes = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := models.UploadForm{
		SessionID: r.FormValue("session_id"),
		Role:      r.FormValue("role"),
	}
	if fields := form.Validate(); fields != nil {
		s.respondValidation(w, fields)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	for _, fh := range files {
		if !s.ingester.Supports(fh.Filename) {
			s.respondError(w, http.StatusUnsupportedMediaType,
				fmt.Sprintf("unsupported file type: %s", filepath.Base(fh.Filename)))
			return
		}
	}

	ctx := r.Context()
	sess, err := s.sessions.GetOrCreate(ctx, form.SessionID, form.Role)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	store, err := s.sessions.Store(ctx, sess.ID)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}

	var processed []string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		n, err := s.ingestPart(r, store, name, fh)
		if err != nil {
			s.logger.Error("upload ingest failed", zap.String("session_id", sess.ID), zap.String("file", name), zap.Error(err))
			if _, ferr := s.sessions.AddFilenames(ctx, sess.ID, processed); ferr != nil {
				s.logger.Warn("failed to record filenames", zap.Error(ferr))
			}
			s.respondError(w, ingestStatus(err), err.Error())
			return
		}
		s.logger.Debug("file ingested", zap.String("session_id", sess.ID), zap.String("file", name), zap.Int("chunks", n))
		processed = append(processed, name)
	}

	filenames, err := s.sessions.AddFilenames(ctx, sess.ID, processed)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.UploadResponse{
		SessionID: sess.ID,
		Message:   fmt.Sprintf("Successfully processed %d files.", len(processed)),
		Filenames: filenames,
	})
}

func (s *Server) ingestPart(r *http.Request, store ingest.Adder, name string, fh *multipart.FileHeader) (int, error) {
	f, err := fh.Open()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}
	return s.ingester.IngestBytes(r.Context(), store, name, content)
}

func ingestStatus(err error) int {
	switch {
	case errors.Is(err, extract.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrExtraction), errors.Is(err, ingest.ErrNoText):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if fields := req.Validate(); fields != nil {
		s.respondValidation(w, fields)
		return
	}

	ctx := r.Context()
	sess, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	store, err := s.sessions.Store(ctx, sess.ID)
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	if err := s.sessions.AppendMessage(ctx, sess.ID, &models.Message{
		Sender:  models.SenderUser,
		Content: req.Query,
	}); err != nil {
		s.respondSessionError(w, err)
		return
	}

	s.logger.Debug("chat request", zap.String("session_id", sess.ID), zap.String("role", sess.Role))
	result := s.answers.Answer(ctx, store, req.Query, sess.Role)
	reply := models.Message{
		Sender:     models.SenderAI,
		Content:    result.Text,
		Sources:    result.Sources,
		Confidence: result.Confidence,
	}
	if err := s.sessions.AppendMessage(ctx, sess.ID, &reply); err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.ChatResponse{SessionID: sess.ID, Response: reply})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List(r.Context())
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h, err := s.sessions.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondSessionError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.sessions.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count sessions failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := models.StatusResponse{
		Version:        s.info.Version,
		Sessions:       count,
		OpenStores:     s.sessions.OpenStores(),
		EmbeddingModel: s.info.EmbeddingModel,
		Dimensions:     s.info.Dimensions,
		IndexType:      s.info.IndexType,
		Roles:          s.answers.Roles(),
		Extensions:     s.ingester.Extensions(),
	}
	if n, err := s.sessions.DiskUsage(); err == nil {
		resp.DiskUsageBytes = n
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrRoleRequired):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("session operation failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}

func (s *Server) respondValidation(w http.ResponseWriter, fields map[string]string) {
	s.respondJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "validation failed", Fields: fields})
}
