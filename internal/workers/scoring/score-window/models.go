package scorewindow

import "cashflow-scorecard/internal/models"

// Input is the job variables of a score-window task.
type Input struct {
	RunID        string        `json:"runId,omitempty"`
	BusinessName string        `json:"businessName"`
	Window       models.Window `json:"window"`
}

// Output is merged into the process variables on completion.
type Output struct {
	RunID        string              `json:"runId,omitempty"`
	Window       models.Window       `json:"window"`
	Passed       bool                `json:"passed"`
	Grade        string              `json:"grade,omitempty"`
	WindowResult models.WindowResult `json:"windowResult"`
}
