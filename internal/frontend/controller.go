// Package frontend serves the scorecard form page, submits it to the
// scoring endpoint and renders the per-window results.
package frontend

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"

	"cashflow-scorecard/internal/common/errors"
	commonhttp "cashflow-scorecard/internal/common/http"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/common/metrics"
)

// Controller runs one submission against a page.
type Controller struct {
	client   ScoreClient
	renderer *Renderer
	logger   logger.Logger
}

func NewController(client ScoreClient, renderer *Renderer, log logger.Logger) *Controller {
	return &Controller{
		client:   client,
		renderer: renderer,
		logger:   log.WithFields(map[string]interface{}{"component": "frontend"}),
	}
}

// Submit hides stale panels, shows the loader and disables the submit
// control before the network call. On every exit, panics included, the
// loader is hidden and the control re-enabled. Failures are shown in the
// error panel and returned; the results panel then stays hidden.
func (c *Controller) Submit(ctx context.Context, page *Page, sub Submission) (err error) {
	page.begin()
	defer page.finish()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
			c.fail(page, err)
		}
	}()

	scored, err := c.client.Score(ctx, sub)
	if err != nil {
		c.fail(page, err)
		return err
	}

	fragments, err := c.renderer.RenderAll(scored.Response)
	if err != nil {
		c.fail(page, err)
		return err
	}

	page.showResults(fragments, scored.RunID)
	metrics.FormSubmissions.WithLabelValues("rendered").Inc()
	return nil
}

func (c *Controller) fail(page *Page, err error) {
	msg := userMessage(err)
	c.logger.Warn("submission failed", map[string]interface{}{"error": err.Error()})
	metrics.FormSubmissions.WithLabelValues("failed").Inc()
	page.showError(msg)
}

// userMessage is the text shown after "Error: ".
func userMessage(err error) string {
	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Message
	}
	return err.Error()
}

// SubmissionFromRequest re-serializes a browser form post: every value and
// every file part, files sorted by field name.
func SubmissionFromRequest(r *http.Request, maxBytes int64) (Submission, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return Submission{}, errors.NewIncorrectMultipartError("form", err)
	}
	defer r.MultipartForm.RemoveAll()

	sub := Submission{Fields: url.Values{}}
	for k, vs := range r.MultipartForm.Value {
		sub.Fields[k] = append([]string(nil), vs...)
	}
	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, fh := range r.MultipartForm.File[field] {
			part, err := readPart(field, fh)
			if err != nil {
				return Submission{}, err
			}
			sub.Files = append(sub.Files, part)
		}
	}
	return sub, nil
}

func readPart(field string, fh *multipart.FileHeader) (commonhttp.FilePart, error) {
	f, err := fh.Open()
	if err != nil {
		return commonhttp.FilePart{}, errors.NewIncorrectMultipartError(field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return commonhttp.FilePart{}, errors.NewIncorrectMultipartError(field, err)
	}
	return commonhttp.FilePart{Field: field, FileName: fh.Filename, Content: data}, nil
}
