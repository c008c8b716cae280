package scorewindow

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cashflow-scorecard/internal/common/config"
	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/scoring/pipeline"
	"cashflow-scorecard/internal/storage"
)

// ==========================
// Mock Scorer
// ==========================

type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) ScoreWindow(ctx context.Context, req pipeline.Request) (models.WindowResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.WindowResult), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "scorecard-process",
		ElementId:          "Activity_ScoreWindow",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createTestHandler(t *testing.T, scorer WindowScorer, store *storage.Store) *Handler {
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Scorer:       scorer,
		Store:        store,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func gradeB() models.WindowResult {
	g := "B"
	return models.NewWindowSuccess(models.Scorecard{Grade: &g, Score: 71, ReasonCodes: []string{}}, nil, "/download/acme/Credit_Memo_acme_3m.pdf")
}

// ==========================
// Handler Construction Tests
// ==========================

func TestNewHandler(t *testing.T) {
	store := storage.New(t.TempDir(), t.TempDir())

	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{"defaults", HandlerOptions{Scorer: &MockScorer{}, Store: store}, ""},
		{"invalid timeout", HandlerOptions{CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: -time.Second}, Scorer: &MockScorer{}, Store: store}, "timeout must be positive"},
		{"invalid max jobs", HandlerOptions{CustomConfig: &Config{Enabled: true, Timeout: time.Second}, Scorer: &MockScorer{}, Store: store}, "max_jobs_active must be positive"},
		{"no scorer", HandlerOptions{Store: store}, "needs a scorer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, h.logger)
			assert.Equal(t, 5, h.Config().MaxJobsActive)
		})
	}
}

func TestConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 1500},
	}}

	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockScorer{}, storage.New(t.TempDir(), t.TempDir()))

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
		validate  func(*testing.T, *Input)
	}{
		{
			name:      "all fields",
			variables: map[string]interface{}{"runId": "run-1", "businessName": "Acme Co", "window": "6m"},
			validate: func(t *testing.T, in *Input) {
				assert.Equal(t, "run-1", in.RunID)
				assert.Equal(t, "Acme Co", in.BusinessName)
				assert.Equal(t, models.Window6M, in.Window)
			},
		},
		{
			name:      "without run id",
			variables: map[string]interface{}{"businessName": "Acme", "window": "3m"},
			validate: func(t *testing.T, in *Input) {
				assert.Empty(t, in.RunID)
			},
		},
		{name: "unknown window", variables: map[string]interface{}{"businessName": "Acme", "window": "12m"}, wantErr: true},
		{name: "missing business", variables: map[string]interface{}{"window": "3m"}, wantErr: true},
		{name: "empty business", variables: map[string]interface{}{"businessName": "", "window": "3m"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidJobInput))
				return
			}
			require.NoError(t, err)
			tt.validate(t, in)
		})
	}
}

// ==========================
// Execution Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	store := storage.New(t.TempDir(), t.TempDir())
	vendorsPath, err := store.SaveUpload("Acme_Co", storage.KindVendors, models.Window3M, strings.NewReader("vendor,amount\n"))
	require.NoError(t, err)

	scorer := &MockScorer{}
	scorer.On("ScoreWindow", mock.Anything, mock.MatchedBy(func(req pipeline.Request) bool {
		return req.Slug == "Acme_Co" &&
			req.Window == models.Window3M &&
			req.Files.BankTx == store.UploadPath("Acme_Co", storage.KindBankTx, models.Window3M) &&
			req.Files.PnL == store.UploadPath("Acme_Co", storage.KindPnL, models.Window3M) &&
			req.Files.Vendors == vendorsPath
	})).Return(gradeB(), nil)

	out, err := createTestHandler(t, scorer, store).Execute(context.Background(),
		&Input{RunID: "run-9", BusinessName: "Acme Co", Window: models.Window3M})
	require.NoError(t, err)

	assert.True(t, out.Passed)
	assert.Equal(t, "B", out.Grade)
	assert.Equal(t, "run-9", out.RunID)
	scorer.AssertExpectations(t)

	vars, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(vars), `"pdf_download_url":"/download/acme/Credit_Memo_acme_3m.pdf"`)
}

func TestHandler_Execute_VendorsOptional(t *testing.T) {
	scorer := &MockScorer{}
	scorer.On("ScoreWindow", mock.Anything, mock.MatchedBy(func(req pipeline.Request) bool {
		return req.Files.Vendors == ""
	})).Return(gradeB(), nil)

	_, err := createTestHandler(t, scorer, storage.New(t.TempDir(), t.TempDir())).Execute(context.Background(),
		&Input{BusinessName: "Acme", Window: models.Window6M})
	require.NoError(t, err)
	scorer.AssertExpectations(t)
}

func TestHandler_Execute_ValidationFailure(t *testing.T) {
	failed, err := models.NewWindowError(pipeline.MsgValidationFailed, map[string]interface{}{"read_error": "missing"})
	require.NoError(t, err)

	scorer := &MockScorer{}
	scorer.On("ScoreWindow", mock.Anything, mock.Anything).Return(failed, nil)

	out, err := createTestHandler(t, scorer, storage.New(t.TempDir(), t.TempDir())).Execute(context.Background(),
		&Input{BusinessName: "Acme", Window: models.Window3M})
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.Empty(t, out.Grade)
	assert.True(t, out.WindowResult.IsError())
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("plain pipeline error becomes scoring failure", func(t *testing.T) {
		scorer := &MockScorer{}
		scorer.On("ScoreWindow", mock.Anything, mock.Anything).Return(models.WindowResult{}, stderrors.New("no monthly data"))

		_, err := createTestHandler(t, scorer, storage.New(t.TempDir(), t.TempDir())).Execute(context.Background(),
			&Input{BusinessName: "Acme", Window: models.Window3M})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeScoringFailed))
		assert.Equal(t, "Error processing 3m data: no monthly data", err.Error())
	})

	t.Run("standard error kept", func(t *testing.T) {
		scorer := &MockScorer{}
		scorer.On("ScoreWindow", mock.Anything, mock.Anything).
			Return(models.WindowResult{}, errors.NewMemoGenerationFailedError("6m", os.ErrPermission))

		_, err := createTestHandler(t, scorer, storage.New(t.TempDir(), t.TempDir())).Execute(context.Background(),
			&Input{BusinessName: "Acme", Window: models.Window6M})
		assert.True(t, errors.HasCode(err, errors.ErrCodeMemoGenerationFailed))
		assert.True(t, errors.IsRetryableErrorCode(errors.AsStandard(err).Code))
	})

	t.Run("unusable business name", func(t *testing.T) {
		scorer := &MockScorer{}
		_, err := createTestHandler(t, scorer, storage.New(t.TempDir(), t.TempDir())).Execute(context.Background(),
			&Input{BusinessName: "!!!", Window: models.Window6M})
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidBusinessName))
		scorer.AssertNotCalled(t, "ScoreWindow", mock.Anything, mock.Anything)
	})
}
