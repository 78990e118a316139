package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/config"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/pipeline"
	"github.com/blockgoats/erm-sub000/internal/storage"
)

// multipartMemory is how much of an upload is buffered in memory before spilling to disk.
const multipartMemory = 8 << 20

type uploadResponse struct {
	Document *models.Document         `json:"document"`
	Result   *models.ProcessingResult `json:"result"`
}

type failureResponse struct {
	Error    string           `json:"error"`
	Document *models.Document `json:"document,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.respondUploadError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondUploadError(w, err)
		return
	}

	in := pipeline.IngestInput{
		OrganizationID: r.FormValue("organization_id"),
		UploadedBy:     r.FormValue("uploaded_by"),
		FileName:       filepath.Base(header.Filename),
		Content:        content,
		FileType:       r.FormValue("file_type"),
		DocumentType:   models.DocumentType(r.FormValue("document_type")),
	}
	s.logger.Debug("upload request",
		zap.String("organization_id", in.OrganizationID),
		zap.String("file_name", in.FileName),
		zap.Int("bytes", len(content)))

	doc, result, err := s.processor.Upload(r.Context(), in)
	if err != nil {
		if doc != nil {
			s.respondJSON(w, http.StatusUnprocessableEntity, failureResponse{Error: err.Error(), Document: doc})
			return
		}
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, uploadResponse{Document: doc, Result: result})
}

func (s *Server) respondUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds maximum size")
		return
	}
	s.respondError(w, http.StatusBadRequest, "invalid multipart upload")
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.processor.Process(r.Context(), id)
	if err == nil {
		s.respondJSON(w, http.StatusOK, result)
		return
	}
	if errors.Is(err, pipeline.ErrDocumentNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if doc, gerr := s.storage.GetDocument(r.Context(), id); gerr == nil && doc.ProcessingStatus == models.StatusFailed {
		s.respondJSON(w, http.StatusUnprocessableEntity, failureResponse{Error: err.Error(), Document: doc})
		return
	}
	s.respondPipelineError(w, err)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetClauses(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	clauses, err := s.storage.GetClausesByDocumentID(r.Context(), doc.ID)
	if err != nil {
		s.logger.Error("list clauses failed", zap.String("document_id", doc.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"document_id": doc.ID, "clauses": nonNil(clauses)})
}

func (s *Server) handleGetObligations(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.loadDocument(w, r)
	if !ok {
		return
	}
	obligations, err := s.storage.GetObligationsByDocumentID(r.Context(), doc.ID)
	if err != nil {
		s.logger.Error("list obligations failed", zap.String("document_id", doc.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"document_id": doc.ID, "obligations": nonNil(obligations)})
}

func (s *Server) loadDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("load document failed", zap.String("document_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return doc, true
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("organization_id")
	clauses, err := s.processor.ListPendingReview(r.Context(), org)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization_id": org,
		"count":           len(clauses),
		"clauses":         nonNil(clauses),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var dirs []string
	if s.watch != nil {
		dirs = s.watch.Directories()
	}
	status, err := CollectStatus(r.Context(), s.storage, s.config, dirs)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// CollectStatus gathers store counts, disk usage and the active policy.
func CollectStatus(ctx context.Context, store storage.Storage, cfg *config.Config, watched []string) (*models.Status, error) {
	docCount, err := store.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	clauseCount, err := store.CountClauses(ctx)
	if err != nil {
		return nil, fmt.Errorf("count clauses: %w", err)
	}
	byStatus, err := store.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents by status: %w", err)
	}

	status := &models.Status{
		Documents:          docCount,
		Clauses:            clauseCount,
		ByStatus:           make(map[string]int64, len(byStatus)),
		WatchedDirectories: watched,
		Config: &models.StatusConfig{
			DatabasePath:       cfg.Storage.DatabasePath,
			ContentDir:         cfg.Storage.ContentDir,
			PromotionThreshold: cfg.Pipeline.PromotionThreshold,
			ReviewThreshold:    cfg.Pipeline.Confidence.ReviewThreshold,
			Workers:            cfg.Pipeline.Workers,
			RiskRegister:       cfg.RiskRegister.BaseURL,
		},
	}
	for st, n := range byStatus {
		status.ByStatus[string(st)] = n
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.ContentDir); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		s.respondError(w, http.StatusNotFound, "directory not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := req.Sync == nil || *req.Sync
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current inbox list back to the config file.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondPipelineError maps pipeline sentinel errors onto HTTP statuses.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrDocumentNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
