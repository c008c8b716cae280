package runs

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/models"
)

type Store interface {
	Save(ctx context.Context, run models.ScoringRun) error
	Get(ctx context.Context, id string) (*models.ScoringRun, error)
}

type History interface {
	Record(ctx context.Context, run models.ScoringRun) error
	History(ctx context.Context, slug string, limit int) ([]models.RunWindowRecord, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, topicARN, eventType string, payload interface{}) (string, error)
}

// WorkflowStarter opens a review process for a finished run.
type WorkflowStarter interface {
	StartProcess(ctx context.Context, processID string, vars interface{}) (int64, error)
}

// Deps are the optional sinks of a Service; nil members are skipped.
type Deps struct {
	Store     Store
	History   History
	Publisher Publisher
	TopicARN  string
	Workflow  WorkflowStarter
	ProcessID string
}

// Service fans a finished run out to every configured sink.
type Service struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps Deps, log logger.Logger) *Service {
	return &Service{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "runs"}),
		now:    time.Now,
	}
}

// NewRun stamps a response with a fresh id and creation time.
func (s *Service) NewRun(businessName, slug string, resp models.ScoreResponse) models.ScoringRun {
	return models.ScoringRun{
		ID:           uuid.NewString(),
		BusinessName: businessName,
		BusinessSlug: slug,
		Response:     resp,
		CreatedAt:    s.now().UTC(),
	}
}

// Record persists run to every sink. Every sink is attempted; the joined
// failures are returned.
func (s *Service) Record(ctx context.Context, run models.ScoringRun) error {
	var errs []error
	log := s.logger.WithFields(map[string]interface{}{"runId": run.ID, "business": run.BusinessSlug})

	if s.deps.Store != nil {
		if err := s.deps.Store.Save(ctx, run); err != nil {
			log.Error("failed to store run", map[string]interface{}{"error": err.Error()})
			errs = append(errs, err)
		}
	}

	if s.deps.History != nil {
		if err := s.deps.History.Record(ctx, run); err != nil {
			log.Error("failed to record run history", map[string]interface{}{"error": err.Error()})
			errs = append(errs, err)
		}
	}

	if s.deps.Publisher != nil {
		msgID, err := s.deps.Publisher.PublishEvent(ctx, s.deps.TopicARN, models.EventScorecardCompleted, models.NewScorecardEvent(run))
		if err != nil {
			pubErr := errors.NewEventPublishError(err)
			log.Error("failed to publish scorecard event", map[string]interface{}{"error": pubErr.Error()})
			errs = append(errs, pubErr)
		} else {
			log.Debug("scorecard event published", map[string]interface{}{"messageId": msgID})
		}
	}

	if s.deps.Workflow != nil && s.deps.ProcessID != "" {
		key, err := s.deps.Workflow.StartProcess(ctx, s.deps.ProcessID, models.NewScorecardEvent(run))
		if err != nil {
			log.Error("failed to start review process", map[string]interface{}{"error": err.Error()})
			errs = append(errs, err)
		} else {
			log.Info("review process started", map[string]interface{}{"processInstanceKey": key})
		}
	}

	return stderrors.Join(errs...)
}

// Get loads a stored run. Without a store every id is unknown.
func (s *Service) Get(ctx context.Context, id string) (*models.ScoringRun, error) {
	if s.deps.Store == nil {
		return nil, errors.NewRunNotFoundError(id)
	}
	return s.deps.Store.Get(ctx, id)
}

// History lists recent window rows for a business, or nothing without a ledger.
func (s *Service) History(ctx context.Context, slug string, limit int) ([]models.RunWindowRecord, error) {
	if s.deps.History == nil {
		return []models.RunWindowRecord{}, nil
	}
	return s.deps.History.History(ctx, slug, limit)
}
