package frontend

import (
	"html/template"
	"sync"

	"cashflow-scorecard/internal/models"
)

// Element ids shared by the page template and the enhancement script.
const (
	FormID    = "scorecard-form"
	SubmitID  = "submit-btn"
	LoaderID  = "loader"
	ResultsID = "results-section"
	ErrorID   = "error-section"
	PanelsID  = "panels"
)

// ContainerID is the id of the result container for window.
func ContainerID(w models.Window) string {
	return "results-" + string(w)
}

// Panel is a region of the page that can be shown or hidden. Text is
// plain text; Content is markup produced by the renderer.
type Panel struct {
	ID      string
	Hidden  bool
	Text    string
	Content template.HTML
}

// Button is the form's submit control.
type Button struct {
	ID       string
	Disabled bool
}

// Page holds the handles the controller and renderer write to. Every read
// and write goes through the page lock, so overlapping submissions against
// one page never race; the last writer wins.
type Page struct {
	mu         sync.Mutex
	Loader     *Panel
	Submit     *Button
	Results    *Panel
	Error      *Panel
	Containers map[models.Window]*Panel
	RunID      string
}

// NewPage returns a page in its initial state: every panel hidden and the
// submit control enabled.
func NewPage() *Page {
	p := &Page{
		Loader:     &Panel{ID: LoaderID, Hidden: true},
		Submit:     &Button{ID: SubmitID},
		Results:    &Panel{ID: ResultsID, Hidden: true},
		Error:      &Panel{ID: ErrorID, Hidden: true},
		Containers: map[models.Window]*Panel{},
	}
	for _, w := range models.ExpectedWindows {
		p.Containers[w] = &Panel{ID: ContainerID(w)}
	}
	return p
}

func (p *Page) begin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Results.Hidden = true
	p.Error.Hidden = true
	p.Loader.Hidden = false
	p.Submit.Disabled = true
}

func (p *Page) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Loader.Hidden = true
	p.Submit.Disabled = false
}

func (p *Page) showError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Error.Text = "Error: " + msg
	p.Error.Hidden = false
}

func (p *Page) showResults(fragments map[models.Window]template.HTML, runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for w, html := range fragments {
		if c, ok := p.Containers[w]; ok {
			c.Content = html
		}
	}
	p.RunID = runID
	p.Results.Hidden = false
}

// WindowState is one result container as the template sees it.
type WindowState struct {
	Window  models.Window
	ID      string
	Content template.HTML
}

// PageState is a consistent copy of a page.
type PageState struct {
	LoaderHidden   bool
	SubmitDisabled bool
	ErrorHidden    bool
	ErrorText      string
	ResultsHidden  bool
	RunID          string
	Windows        []WindowState
}

func (p *Page) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PageState{
		LoaderHidden:   p.Loader.Hidden,
		SubmitDisabled: p.Submit.Disabled,
		ErrorHidden:    p.Error.Hidden,
		ErrorText:      p.Error.Text,
		ResultsHidden:  p.Results.Hidden,
		RunID:          p.RunID,
	}
	for _, w := range models.ExpectedWindows {
		c := p.Containers[w]
		st.Windows = append(st.Windows, WindowState{Window: w, ID: c.ID, Content: c.Content})
	}
	return st
}

// Container returns the rendered markup of window's container.
func (s PageState) Container(w models.Window) template.HTML {
	for _, ws := range s.Windows {
		if ws.Window == w {
			return ws.Content
		}
	}
	return ""
}
