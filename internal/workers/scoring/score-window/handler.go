// Package scorewindow is the Zeebe worker that scores one window of a
// business whose files are already uploaded.
package scorewindow

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"cashflow-scorecard/internal/common/config"
	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/common/metrics"
	"cashflow-scorecard/internal/common/validation"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/scoring/pipeline"
	scoringvalidation "cashflow-scorecard/internal/scoring/validation"
	"cashflow-scorecard/internal/storage"
)

const TaskType = "score-window"

// WindowScorer scores one window; *pipeline.Pipeline implements it.
type WindowScorer interface {
	ScoreWindow(ctx context.Context, req pipeline.Request) (models.WindowResult, error)
}

type Handler struct {
	config     *Config
	logger     logger.Logger
	scorer     WindowScorer
	store      *storage.Store
	errHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Scorer       WindowScorer
	Store        *storage.Store
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Scorer == nil || opts.Store == nil {
		return nil, fmt.Errorf("%s needs a scorer and a store", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:     workerConfig,
		logger:     log,
		scorer:     opts.Scorer,
		store:      opts.Store,
		errHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

// Handle completes the job with the window result or hands the error to the
// job error handler. It satisfies camunda.JobHandler.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing score-window job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return nil
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return nil
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}

	result, err := validation.ValidateScoreJob(variables)
	if err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidJobInputError(result.Summary())
	}

	input := &Input{
		BusinessName: variables["businessName"].(string),
		Window:       models.Window(variables["window"].(string)),
	}
	if runID, ok := variables["runId"].(string); ok {
		input.RunID = runID
	}
	return input, nil
}

// Execute scores the window from the uploads stored for the business.
// Validation failures complete the job with passed=false; only pipeline
// errors are returned.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	slug := storage.Slug(input.BusinessName)
	if slug == "" {
		return nil, errors.NewInvalidBusinessNameError(input.BusinessName)
	}

	files := scoringvalidation.Files{
		BankTx: h.store.UploadPath(slug, storage.KindBankTx, input.Window),
		PnL:    h.store.UploadPath(slug, storage.KindPnL, input.Window),
	}
	if p := h.store.UploadPath(slug, storage.KindVendors, input.Window); fileExists(p) {
		files.Vendors = p
	}

	res, err := h.scorer.ScoreWindow(ctx, pipeline.Request{
		BusinessName: input.BusinessName,
		Slug:         slug,
		Window:       input.Window,
		Files:        files,
	})
	if err != nil {
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) {
			return nil, err
		}
		return nil, errors.NewScoringFailedError(string(input.Window), err)
	}

	out := &Output{RunID: input.RunID, Window: input.Window, WindowResult: res}
	if res.Success != nil {
		out.Passed = true
		out.Grade = res.Success.Scorecard.GradeOrEmpty()
	}
	return out, nil
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	request, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return err
	}

	h.logger.Info("Completed score-window job", map[string]interface{}{
		"jobKey": job.GetKey(),
		"window": string(output.Window),
		"passed": output.Passed,
		"grade":  output.Grade,
	})
	return nil
}
