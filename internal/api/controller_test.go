package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/runs"
	"cashflow-scorecard/internal/scoring/pipeline"
	"cashflow-scorecard/internal/storage"
)

type fakeScorer struct {
	mu       sync.Mutex
	requests []pipeline.Request
	err      error
}

func (f *fakeScorer) ScoreWindow(_ context.Context, req pipeline.Request) (models.WindowResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return models.WindowResult{}, f.err
	}
	grade := "A"
	return models.NewWindowSuccess(models.Scorecard{Grade: &grade, Score: 88, ReasonCodes: []string{"NO_NSF"}},
		nil, storage.DownloadURL(req.Slug, storage.MemoFileName(req.Slug, req.Window))), nil
}

type memStore struct {
	runs map[string]models.ScoringRun
}

func (m *memStore) Save(_ context.Context, run models.ScoringRun) error {
	m.runs[run.ID] = run
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.ScoringRun, error) {
	run := m.runs[id]
	return &run, nil
}

type staticHistory struct{}

func (staticHistory) Record(context.Context, models.ScoringRun) error { return nil }

func (staticHistory) History(_ context.Context, slug string, limit int) ([]models.RunWindowRecord, error) {
	return []models.RunWindowRecord{{RunID: "run-1", BusinessSlug: slug, Window: models.Window3M, Score: float64(limit)}}, nil
}

type testEnv struct {
	router *mux.Router
	scorer *fakeScorer
	store  *storage.Store
	runs   *memStore
	root   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		router: mux.NewRouter(),
		scorer: &fakeScorer{},
		store:  storage.New(filepath.Join(root, "uploads"), filepath.Join(root, "outputs")),
		runs:   &memStore{runs: map[string]models.ScoringRun{}},
		root:   root,
	}
	svc := runs.NewService(runs.Deps{Store: env.runs, History: staticHistory{}}, logger.NewNoOpLogger())
	RegisterRoutes(env.router, NewScoreController(env.scorer, env.store, svc, nil, 4, logger.NewTestLogger(t)))
	return env
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func allFiles() map[string]string {
	return map[string]string{
		"bank_tx_3m":     "date,amount\n",
		"pnl_monthly_3m": "month,revenue\n",
		"bank_tx_6m":     "date,amount\n",
		"pnl_monthly_6m": "month,revenue\n",
	}
}

func (e *testEnv) post(t *testing.T, fields, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/score/", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestScore_Success(t *testing.T) {
	env := newTestEnv(t)
	files := allFiles()
	files["vendors_6m"] = "vendor_id,name\nV1,Acme Supply\n"

	rec := env.post(t, map[string]string{"business_name": "Acme Corp"}, files)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ScoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "/download/Acme_Corp/Credit_Memo_Acme_Corp_3m.pdf", resp[models.Window3M].Success.PDFDownloadURL)

	runID := rec.Header().Get(RunIDHeader)
	require.NotEmpty(t, runID)
	assert.Contains(t, env.runs.runs, runID)

	require.Len(t, env.scorer.requests, 2)
	first := env.scorer.requests[0]
	assert.Equal(t, models.Window3M, first.Window)
	assert.Equal(t, "Acme Corp", first.BusinessName)
	assert.Empty(t, first.Files.Vendors)
	assert.Equal(t, filepath.Join(env.root, "uploads", "Acme_Corp", "bank_tx_3m.csv"), first.Files.BankTx)
	assert.NotEmpty(t, env.scorer.requests[1].Files.Vendors)

	data, err := os.ReadFile(env.scorer.requests[1].Files.Vendors)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Acme Supply")
}

func TestScore_MissingParameters(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, nil, map[string]string{"bank_tx_3m": "x", "pnl_monthly_6m": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Required parameters are missing: business_name, pnl_monthly_3m, bank_tx_6m, pnl_monthly_6m", detail(t, rec))
	assert.Empty(t, env.scorer.requests)
}

func TestScore_NotMultipart(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/score/", bytes.NewBufferString(`{"business_name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScore_UnusableBusinessName(t *testing.T) {
	env := newTestEnv(t)

	rec := env.post(t, map[string]string{"business_name": "!!!"}, allFiles())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detail(t, rec), "no usable characters")
}

func TestScore_WindowErrorIs500(t *testing.T) {
	env := newTestEnv(t)
	env.scorer.err = stderrors.New("pnl_monthly has no rows")

	rec := env.post(t, map[string]string{"business_name": "Acme"}, allFiles())
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing 3m data: pnl_monthly has no rows", detail(t, rec))
	assert.Empty(t, rec.Header().Get(RunIDHeader))
	assert.Empty(t, env.runs.runs)
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	memo := env.store.MemoPath("Acme", models.Window3M)
	require.NoError(t, os.MkdirAll(filepath.Dir(memo), 0o755))
	require.NoError(t, os.WriteFile(memo, []byte("%PDF-1.3 test"), 0o644))

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/Acme/Credit_Memo_Acme_3m.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Credit_Memo_Acme_3m.pdf")
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/Acme/missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", detail(t, rec))
}

func TestScoreResponseSchema(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schema/score-response", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schema))
	assert.Contains(t, schema, "additionalProperties")
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/Acme?limit=500", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []models.RunWindowRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "Acme", records[0].BusinessSlug)
	assert.Equal(t, float64(maxHistoryLimit), records[0].Score)

	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/Acme?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
