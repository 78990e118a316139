package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blockgoats/erm-sub000/internal/config"
	"github.com/blockgoats/erm-sub000/internal/extract"
	"github.com/blockgoats/erm-sub000/internal/models"
	"github.com/blockgoats/erm-sub000/internal/pipeline"
	"github.com/blockgoats/erm-sub000/internal/register"
	"github.com/blockgoats/erm-sub000/internal/riskmatch"
	"github.com/blockgoats/erm-sub000/internal/segment"
	"github.com/blockgoats/erm-sub000/internal/storage"
)

const contractText = "Vendor shall remediate critical vulnerabilities within 30 days or incur a penalty.\n\n" +
	"The customer may terminate this agreement upon written notice."

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type failingExtractor struct{}

func (failingExtractor) ExtractFile(context.Context, string) (string, error) {
	return "", errors.New("unreadable document")
}

type testEnv struct {
	handler http.Handler
	store   *storage.SQLiteStorage
	cfg     *config.Config
	watch   *mockWatchService
}

func newTestEnv(t *testing.T, extractor pipeline.TextExtractor) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Storage: config.StorageConfig{
		DatabasePath: filepath.Join(dir, "erm.db"),
		ContentDir:   filepath.Join(dir, "content"),
	}}
	config.ApplyDefaults(cfg)
	cfg.Server.MaxUploadBytes = 64 << 10

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	content, err := storage.NewContentStore(cfg.Storage.ContentDir)
	require.NoError(t, err)

	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	p := cfg.Pipeline
	analyzer := pipeline.NewAnalyzer(segment.New(p.MinRiskLength, p.MinClauseLength), p.Confidence, riskmatch.NewMatcher(p.RiskConfidence, p.Confidence.ReviewGate))
	proc := pipeline.NewProcessor(store, content, extractor, analyzer, register.Noop{}, pipeline.Options{})

	watch := &mockWatchService{}
	srv := NewServer(proc, store, cfg, zap.NewNop(), watch, "")
	return &testEnv{handler: srv.Handler(), store: store, cfg: cfg, watch: watch}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, fields map[string]string, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func defaultFields() map[string]string {
	return map[string]string{
		"organization_id": "org-1",
		"uploaded_by":     "user-1",
		"document_type":   "contract",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandleUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, uploadRequest(t, defaultFields(), "msa.txt", []byte(contractText)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[uploadResponse](t, rec)
	require.NotNil(t, resp.Document)
	assert.Equal(t, models.StatusCompleted, resp.Document.ProcessingStatus)
	assert.Equal(t, models.DocumentTypeContract, resp.Document.DocumentType)
	assert.Equal(t, "msa.txt", resp.Document.FileName)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Clauses, 2)
	assert.Len(t, resp.Result.Risks, 1)
	assert.Equal(t, 2, resp.Result.ReviewQueueCount)

	// same bytes again become version 2
	rec = env.do(t, uploadRequest(t, defaultFields(), "msa.txt", []byte(contractText)))
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[uploadResponse](t, rec)
	assert.Equal(t, 2, second.Document.VersionNumber)
	assert.Equal(t, resp.Document.ID, second.Document.ParentDocumentID)
}

func TestHandleUpload_badRequests(t *testing.T) {
	env := newTestEnv(t, nil)

	noOrg := defaultFields()
	delete(noOrg, "organization_id")
	badType := defaultFields()
	badType["document_type"] = "memo"

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"missing file", uploadRequest(t, defaultFields(), "", nil)},
		{"missing organization", uploadRequest(t, noOrg, "a.txt", []byte(contractText))},
		{"empty file", uploadRequest(t, defaultFields(), "a.txt", []byte{})},
		{"unknown document type", uploadRequest(t, badType, "a.txt", []byte(contractText))},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/v1/documents", bytes.NewBufferString("{}"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	n, err := env.store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleUpload_tooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	big := bytes.Repeat([]byte("a"), int(env.cfg.Server.MaxUploadBytes)+1)
	rec := env.do(t, uploadRequest(t, defaultFields(), "big.txt", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleUpload_processingFailure(t *testing.T) {
	env := newTestEnv(t, failingExtractor{})
	rec := env.do(t, uploadRequest(t, defaultFields(), "scan.pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[failureResponse](t, rec)
	assert.Contains(t, resp.Error, "unreadable document")
	require.NotNil(t, resp.Document)
	assert.Equal(t, models.StatusFailed, resp.Document.ProcessingStatus)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+resp.Document.ID+"/process", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleDocumentRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, uploadRequest(t, defaultFields(), "msa.txt", []byte(contractText)))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[uploadResponse](t, rec).Document.ID

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[models.Document](t, rec).ID)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id+"/clauses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	clauses := decode[struct {
		Clauses []models.ExtractedClause `json:"clauses"`
	}](t, rec).Clauses
	require.Len(t, clauses, 2)
	assert.Equal(t, 1, clauses[0].ClauseNumber)
	assert.Equal(t, 2, clauses[1].ClauseNumber)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+id+"/obligations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	obligations := decode[struct {
		Obligations []models.ComplianceObligation `json:"obligations"`
	}](t, rec).Obligations
	assert.Len(t, obligations, 1)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/documents/"+id+"/process", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.ProcessingResult](t, rec).Clauses, 2)
}

func TestHandleDocumentRoutes_notFound(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing/clauses", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/documents/missing/process", nil),
	} {
		rec := env.do(t, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.URL.Path)
	}
}

func TestHandleReviewQueue(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/review", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, uploadRequest(t, defaultFields(), "msa.txt", []byte(contractText)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/review?organization_id=org-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Count   int                      `json:"count"`
		Clauses []models.ExtractedClause `json:"clauses"`
	}](t, rec)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Clauses, 1)
	assert.Equal(t, models.ClauseRight, resp.Clauses[0].ClauseType)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/review?organization_id=org-2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"organization_id":"org-2","count":0,"clauses":[]}`, rec.Body.String())
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.watch.dirs = []string{"/srv/inbox"}
	rec := env.do(t, uploadRequest(t, defaultFields(), "msa.txt", []byte(contractText)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.Status](t, rec)
	assert.Equal(t, int64(1), status.Documents)
	assert.Equal(t, int64(2), status.Clauses)
	assert.Equal(t, int64(1), status.ByStatus["completed"])
	require.NotNil(t, status.DiskUsageBytes)
	assert.Positive(t, *status.DiskUsageBytes)
	assert.Equal(t, []string{"/srv/inbox"}, status.WatchedDirectories)
	require.NotNil(t, status.Config)
	assert.Equal(t, 0.7, status.Config.PromotionThreshold)
	assert.Equal(t, 0.8, status.Config.ReviewThreshold)
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleWatchDirectories(t *testing.T) {
	env := newTestEnv(t, nil)
	dir := t.TempDir()

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewBufferString(`{"path":"`+dir+`"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{dir}, env.watch.dirs)

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), dir)

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.watch.dirs)
}

func TestHandleWatchDirectoriesAdd_errors(t *testing.T) {
	env := newTestEnv(t, nil)
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing path", `{}`, http.StatusBadRequest},
		{"not a directory", `{"path":"` + file + `"}`, http.StatusBadRequest},
		{"missing directory", `{"path":"` + filepath.Join(t.TempDir(), "nope") + `"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewBufferString(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleWatchDirectories_persistsConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	srv := NewServer(nil, env.store, env.cfg, zap.NewNop(), env.watch, configPath)
	dir := t.TempDir()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewBufferString(`{"path":"`+dir+`","sync":false}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), dir)
}

func TestHandleWatchDirectories_disabled(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := NewServer(nil, env.store, env.cfg, zap.NewNop(), nil, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandler_cors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.Server.CORSAllowedOrigins = []string{"https://erm.example.com"}
	handler := NewServer(nil, env.store, env.cfg, zap.NewNop(), nil, "").Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://erm.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://erm.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// without configured origins no CORS headers are sent
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://erm.example.com")
	rec = env.do(t, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
