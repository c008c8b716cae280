package frontend

import "html/template"

type elementIDs struct {
	Form, Submit, Loader, Results, Error, Panels string
}

var ids = elementIDs{
	Form:    FormID,
	Submit:  SubmitID,
	Loader:  LoaderID,
	Results: ResultsID,
	Error:   ErrorID,
	Panels:  PanelsID,
}

type fileInput struct {
	Name     string
	Label    string
	Required bool
}

var fileInputs = []fileInput{
	{"bank_tx_3m", "Bank transactions (3 months)", true},
	{"pnl_monthly_3m", "Monthly P&L (3 months)", true},
	{"vendors_3m", "Vendor payments (3 months)", false},
	{"bank_tx_6m", "Bank transactions (6 months)", true},
	{"pnl_monthly_6m", "Monthly P&L (6 months)", true},
	{"vendors_6m", "Vendor payments (6 months)", false},
}

type pageView struct {
	State  PageState
	IDs    elementIDs
	Inputs []fileInput
	Title  string
}

func newPageView(st PageState) pageView {
	return pageView{State: st, IDs: ids, Inputs: fileInputs, Title: "Cash-Flow Underwriting Scorecard"}
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; background: #f4f6f8; color: #1f2933; margin: 0; }
  main { max-width: 960px; margin: 0 auto; padding: 24px; }
  form, .card { background: #fff; border: 1px solid #d9e2ec; border-radius: 6px; padding: 16px; margin-bottom: 16px; }
  label { display: block; font-weight: 600; margin-top: 10px; }
  .optional { font-weight: 400; color: #627d98; }
  button { margin-top: 16px; padding: 8px 20px; background: #4285f4; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
  button:disabled { background: #9fb3c8; cursor: wait; }
  .hidden { display: none; }
  .windows { display: grid; grid-template-columns: repeat(auto-fit, minmax(280px, 1fr)); gap: 16px; }
  .grade { display: inline-block; font-size: 2rem; font-weight: 700; padding: 4px 16px; border-radius: 4px; color: #fff; background: #627d98; }
  .grade-A { background: #2f855a; } .grade-B { background: #38a169; } .grade-C { background: #d69e2e; }
  .grade-D { background: #dd6b20; } .grade-E { background: #c53030; }
  .error { color: #c53030; }
  #error-section { color: #c53030; background: #fff5f5; border: 1px solid #feb2b2; border-radius: 6px; padding: 12px; }
  .details, .missing { font-family: monospace; color: #486581; word-break: break-all; }
  .download-btn { display: inline-block; margin-top: 8px; padding: 6px 14px; background: #1f2933; color: #fff; border-radius: 4px; text-decoration: none; }
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<form id="{{.IDs.Form}}" action="/submit" method="post" enctype="multipart/form-data">
  <label for="business_name">Business name</label>
  <input id="business_name" name="business_name" type="text" required>
  {{- range .Inputs}}
  <label for="{{.Name}}">{{.Label}}{{if not .Required}} <span class="optional">(optional)</span>{{end}}</label>
  <input id="{{.Name}}" name="{{.Name}}" type="file" accept=".csv"{{if .Required}} required{{end}}>
  {{- end}}
  <button id="{{.IDs.Submit}}" type="submit"{{if .State.SubmitDisabled}} disabled{{end}}>Generate Scorecard</button>
</form>
<div id="{{.IDs.Loader}}" class="card{{if .State.LoaderHidden}} hidden{{end}}">Scoring, please wait...</div>
{{template "panels" .}}
</main>
<script>
(function () {
  var form = document.getElementById({{.IDs.Form}});
  form.addEventListener('submit', async function (event) {
    event.preventDefault();
    var submitBtn = document.getElementById({{.IDs.Submit}});
    var loader = document.getElementById({{.IDs.Loader}});
    document.getElementById({{.IDs.Results}}).classList.add('hidden');
    document.getElementById({{.IDs.Error}}).classList.add('hidden');
    loader.classList.remove('hidden');
    submitBtn.disabled = true;
    try {
      var response = await fetch('/submit', {
        method: 'POST',
        body: new FormData(form),
        headers: { 'X-Requested-With': 'XMLHttpRequest' }
      });
      var html = await response.text();
      document.getElementById({{.IDs.Panels}}).outerHTML = html;
    } catch (error) {
      var errorSection = document.getElementById({{.IDs.Error}});
      errorSection.textContent = 'Error: ' + (error.message || 'An unknown error occurred.');
      errorSection.classList.remove('hidden');
    } finally {
      loader.classList.add('hidden');
      submitBtn.disabled = false;
    }
  });
})();
</script>
</body>
</html>
{{define "panels"}}<div id="{{.IDs.Panels}}">
<div id="{{.IDs.Error}}" class="{{if .State.ErrorHidden}}hidden{{end}}">{{.State.ErrorText}}</div>
<section id="{{.IDs.Results}}" class="{{if .State.ResultsHidden}}hidden{{end}}">
  <h2>Results</h2>
  {{- with .State.RunID}}
  <p class="permalink">Run <a href="/results/{{.}}">{{.}}</a></p>
  {{- end}}
  <div class="windows">
  {{- range .State.Windows}}
    <div id="{{.ID}}" class="card">{{.Content}}</div>
  {{- end}}
  </div>
</section>
</div>{{end}}
`))
