// internal/models/notification.go
package models

const EventScorecardCompleted = "scorecard.completed"

// ScorecardEvent is published once per completed run.
type ScorecardEvent struct {
	Type         string                 `json:"type"`
	RunID        string                 `json:"runId"`
	BusinessSlug string                 `json:"businessSlug"`
	Windows      map[Window]EventWindow `json:"windows"`
	OccurredAt   string                 `json:"occurredAt"`
}

type EventWindow struct {
	Passed          bool    `json:"passed"`
	Grade           string  `json:"grade,omitempty"`
	Score           float64 `json:"score,omitempty"`
	EligibleCapital float64 `json:"eligibleCapital,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// NewScorecardEvent summarizes run for subscribers.
func NewScorecardEvent(run ScoringRun) ScorecardEvent {
	ev := ScorecardEvent{
		Type:         EventScorecardCompleted,
		RunID:        run.ID,
		BusinessSlug: run.BusinessSlug,
		Windows:      map[Window]EventWindow{},
		OccurredAt:   run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	for w, res := range run.Response {
		if res.Err != nil {
			ev.Windows[w] = EventWindow{Error: res.Err.Error}
			continue
		}
		if res.Success != nil {
			sc := res.Success.Scorecard
			ev.Windows[w] = EventWindow{
				Passed:          true,
				Grade:           sc.GradeOrEmpty(),
				Score:           sc.Score,
				EligibleCapital: sc.EligibleCapital,
			}
		}
	}
	return ev
}
