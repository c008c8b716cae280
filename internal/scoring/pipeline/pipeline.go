// Package pipeline scores one window end to end: validation, features,
// scorecard and credit memo.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/common/metrics"
	"cashflow-scorecard/internal/common/observability"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/scoring/engine"
	"cashflow-scorecard/internal/scoring/features"
	"cashflow-scorecard/internal/scoring/memo"
	"cashflow-scorecard/internal/scoring/validation"
	"cashflow-scorecard/internal/storage"
)

// MsgValidationFailed is the window error reported when checks fail.
const MsgValidationFailed = "Data validation failed"

const (
	resultScored           = "scored"
	resultValidationFailed = "validation_failed"
	resultError            = "error"
)

// Request names the files of one window for one business.
type Request struct {
	BusinessName string
	Slug         string
	Window       models.Window
	Files        validation.Files
}

type Pipeline struct {
	store      *storage.Store
	obs        *observability.Observability
	logger     logger.Logger
	policyNote string
	now        func() time.Time
}

func New(store *storage.Store, obs *observability.Observability, log logger.Logger, policyNote string) *Pipeline {
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &Pipeline{
		store:      store,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "pipeline"}),
		policyNote: policyNote,
		now:        time.Now,
	}
}

// ScoreWindow returns the window result. Failed validation is a result, not
// an error; errors are reserved for failures the caller reports as a whole.
func (p *Pipeline) ScoreWindow(ctx context.Context, req Request) (models.WindowResult, error) {
	window := string(req.Window)
	ctx, span := p.obs.StartSpan(ctx, "score-window",
		attribute.String("window", window),
		attribute.String("business", req.Slug),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		metrics.WindowDuration.WithLabelValues(window).Observe(elapsed.Seconds())
		p.obs.RecordWindowDuration(ctx, window, elapsed)
	}()

	log := p.logger.WithFields(map[string]interface{}{"business": req.Slug, "window": window})

	report, ds := validation.ValidateFiles(req.Files)
	if !report.Passed {
		log.Warn("data validation failed", map[string]interface{}{"details": report.Details()})
		p.record(ctx, window, resultValidationFailed)
		return models.NewWindowError(MsgValidationFailed, report.Details())
	}

	feats, err := features.Compute(ds.Bank, ds.PnL, ds.Vendors)
	if err != nil {
		p.fail(ctx, span, window, err)
		return models.WindowResult{}, err
	}

	result := engine.Calculate(feats)
	sc := result.Scorecard()

	memoPath := p.store.MemoPath(req.Slug, req.Window)
	err = memo.WriteFile(memoPath, memo.Input{
		BusinessName: req.BusinessName,
		Window:       req.Window,
		AsOf:         p.now(),
		Scorecard:    sc,
		Features:     feats,
		Bank:         ds.Bank,
		PolicyNote:   p.policyNote,
	})
	if err != nil {
		stdErr := errors.NewMemoGenerationFailedError(window, err)
		p.fail(ctx, span, window, stdErr)
		return models.WindowResult{}, stdErr
	}

	log.Info("window scored", map[string]interface{}{
		"score":      result.Score,
		"grade":      result.Grade,
		"capital":    result.EligibleCapital,
		"components": result.Components,
	})
	p.record(ctx, window, resultScored)
	metrics.GradesAssigned.WithLabelValues(window, result.Grade).Inc()

	url := storage.DownloadURL(req.Slug, storage.MemoFileName(req.Slug, req.Window))
	return models.NewWindowSuccess(sc, &feats, url), nil
}

func (p *Pipeline) record(ctx context.Context, window, result string) {
	metrics.WindowsScored.WithLabelValues(window, result).Inc()
	p.obs.RecordWindowProcessed(ctx, window, result)
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, window string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logger.Error("window scoring failed", map[string]interface{}{"window": window, "error": err.Error()})
	p.record(ctx, window, resultError)
}
