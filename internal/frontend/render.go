package frontend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"cashflow-scorecard/internal/common/money"
	"cashflow-scorecard/internal/models"
)

// MissingWindowText is shown in a container whose window is absent from
// the response.
const MissingWindowText = "No result returned for this window."

const gradeFallback = "N/A"

const windowTemplate = `<h3>{{.Label}}</h3>
{{- if .Err}}
<p class="error">Error: {{.Err.Error}}</p>
<p class="details">{{.Details}}</p>
{{- else if .Success}}{{with .Success}}
<div class="grade grade-{{grade .Scorecard}}">{{grade .Scorecard}}</div>
<p><strong>Score:</strong> {{score .Scorecard.Score}}</p>
<p><strong>Eligible Capital:</strong> {{usd .Scorecard.EligibleCapital}}</p>
<p><strong>Annual ECL:</strong> {{usd .Scorecard.ExpectedLossAnnualized}}</p>
<p><strong>Reasons:</strong> {{join .Scorecard.ReasonCodes ", "}}</p>
<a href="{{.PDFDownloadURL}}" class="download-btn" target="_blank" rel="noopener">Download PDF</a>
{{- end}}
{{- else}}
<p class="missing">` + MissingWindowText + `</p>
{{- end}}
`

type windowView struct {
	Label   string
	Err     *models.WindowError
	Details string
	Success *models.WindowSuccess
}

// Renderer turns window results into escaped HTML fragments.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() *Renderer {
	tmpl := template.Must(template.New("window").Funcs(template.FuncMap{
		"grade": gradeText,
		"score": func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"usd":   money.USD,
		"join":  strings.Join,
	}).Parse(windowTemplate))
	return &Renderer{tmpl: tmpl}
}

func gradeText(sc models.Scorecard) string {
	if g := sc.GradeOrEmpty(); g != "" {
		return g
	}
	return gradeFallback
}

// detailsText is the compact JSON text of details, or "null" when absent.
func detailsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// RenderWindow renders one window's result. A nil result renders the
// missing-window placeholder.
func (r *Renderer) RenderWindow(w models.Window, res *models.WindowResult) (template.HTML, error) {
	view := windowView{Label: w.Label()}
	if res != nil {
		switch {
		case res.Err != nil:
			view.Err = res.Err
			view.Details = detailsText(res.Err.Details)
		case res.Success != nil:
			view.Success = res.Success
		}
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render %s: %w", w, err)
	}
	// Safe: produced by html/template.
	return template.HTML(buf.String()), nil
}

// RenderAll renders every expected window, using the placeholder for windows
// the response omits.
func (r *Renderer) RenderAll(resp models.ScoreResponse) (map[models.Window]template.HTML, error) {
	out := make(map[models.Window]template.HTML, len(models.ExpectedWindows))
	for _, w := range models.ExpectedWindows {
		var res *models.WindowResult
		if v, ok := resp[w]; ok {
			res = &v
		}
		html, err := r.RenderWindow(w, res)
		if err != nil {
			return nil, err
		}
		out[w] = html
	}
	return out, nil
}
