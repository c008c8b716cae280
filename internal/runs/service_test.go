package runs

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/models"
)

type fakeStore struct {
	saved []models.ScoringRun
	err   error
}

func (f *fakeStore) Save(_ context.Context, run models.ScoringRun) error {
	f.saved = append(f.saved, run)
	return f.err
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.ScoringRun, error) {
	for _, r := range f.saved {
		if r.ID == id {
			r := r
			return &r, nil
		}
	}
	return nil, errors.NewRunNotFoundError(id)
}

type fakeHistory struct {
	recorded int
}

func (f *fakeHistory) Record(context.Context, models.ScoringRun) error {
	f.recorded++
	return nil
}

func (f *fakeHistory) History(context.Context, string, int) ([]models.RunWindowRecord, error) {
	return []models.RunWindowRecord{{RunID: "run-1"}}, nil
}

type fakePublisher struct {
	topic     string
	eventType string
	payload   interface{}
	err       error
}

func (f *fakePublisher) PublishEvent(_ context.Context, topicARN, eventType string, payload interface{}) (string, error) {
	f.topic, f.eventType, f.payload = topicARN, eventType, payload
	return "msg-1", f.err
}

func TestService_RecordFansOut(t *testing.T) {
	store, hist, pub := &fakeStore{}, &fakeHistory{}, &fakePublisher{}
	svc := NewService(Deps{Store: store, History: hist, Publisher: pub, TopicARN: "arn:topic"}, logger.NewTestLogger(t))

	run := svc.NewRun("Acme Corp", "Acme_Corp", sampleRun().Response)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	require.NoError(t, svc.Record(context.Background(), run))
	assert.Len(t, store.saved, 1)
	assert.Equal(t, 1, hist.recorded)
	assert.Equal(t, "arn:topic", pub.topic)
	assert.Equal(t, models.EventScorecardCompleted, pub.eventType)
	ev, ok := pub.payload.(models.ScorecardEvent)
	require.True(t, ok)
	assert.Equal(t, run.ID, ev.RunID)

	got, err := svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.BusinessName)
}

func TestService_RecordAttemptsEverySink(t *testing.T) {
	store := &fakeStore{err: errors.NewRunStoreError(stderrors.New("redis down"))}
	hist := &fakeHistory{}
	pub := &fakePublisher{err: stderrors.New("throttled")}
	svc := NewService(Deps{Store: store, History: hist, Publisher: pub}, logger.NewNoOpLogger())

	err := svc.Record(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Equal(t, 1, hist.recorded)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunStoreFailed))
	assert.True(t, errors.HasCode(err, errors.ErrCodeEventPublishing))
}

func TestService_WithoutSinks(t *testing.T) {
	svc := NewService(Deps{}, logger.NewNoOpLogger())

	require.NoError(t, svc.Record(context.Background(), sampleRun()))

	_, err := svc.Get(context.Background(), "run-1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotFound))

	hist, err := svc.History(context.Background(), "Acme", 5)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

type fakeWorkflow struct {
	processID string
	vars      interface{}
	err       error
}

func (f *fakeWorkflow) StartProcess(_ context.Context, processID string, vars interface{}) (int64, error) {
	f.processID, f.vars = processID, vars
	return 2251799813685249, f.err
}

func TestService_RecordStartsReviewProcess(t *testing.T) {
	wf := &fakeWorkflow{}
	svc := NewService(Deps{Workflow: wf, ProcessID: "scorecard-review"}, logger.NewTestLogger(t))

	run := sampleRun()
	require.NoError(t, svc.Record(context.Background(), run))
	assert.Equal(t, "scorecard-review", wf.processID)
	ev, ok := wf.vars.(models.ScorecardEvent)
	require.True(t, ok)
	assert.Equal(t, run.ID, ev.RunID)

	t.Run("no process id", func(t *testing.T) {
		wf := &fakeWorkflow{}
		svc := NewService(Deps{Workflow: wf}, logger.NewNoOpLogger())
		require.NoError(t, svc.Record(context.Background(), run))
		assert.Empty(t, wf.processID)
	})

	t.Run("engine failure", func(t *testing.T) {
		wf := &fakeWorkflow{err: errors.NewWorkflowEngineError("create-instance scorecard-review", true, stderrors.New("unavailable"))}
		svc := NewService(Deps{Workflow: wf, ProcessID: "scorecard-review"}, logger.NewNoOpLogger())
		err := svc.Record(context.Background(), run)
		assert.True(t, errors.HasCode(err, errors.ErrCodeWorkflowEngine))
	})
}
