package frontend

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/models"
)

const multipartMemory = 8 << 20

// RunLoader fetches a stored run; *runs.Service implements it.
type RunLoader interface {
	Get(ctx context.Context, id string) (*models.ScoringRun, error)
}

type Handlers struct {
	controller     *Controller
	renderer       *Renderer
	runs           RunLoader
	maxUploadBytes int64
	logger         logger.Logger
}

func NewHandlers(controller *Controller, renderer *Renderer, loader RunLoader, maxUploadMB int, log logger.Logger) *Handlers {
	return &Handlers{
		controller:     controller,
		renderer:       renderer,
		runs:           loader,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         log.WithFields(map[string]interface{}{"component": "frontend"}),
	}
}

// RegisterRoutes mounts the form page on router.
func RegisterRoutes(router *mux.Router, h *Handlers) {
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/submit", h.Submit).Methods(http.MethodPost)
	router.HandleFunc("/results/{id}", h.Results).Methods(http.MethodGet)
}

func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.writePage(w, http.StatusOK, NewPage(), false)
}

// Submit runs the form through the controller against a fresh page. Script
// callers (X-Requested-With: XMLHttpRequest) get the panels fragment only.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	page := NewPage()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	sub, err := SubmissionFromRequest(r, multipartMemory)
	if err != nil {
		h.controller.fail(page, err)
	} else {
		_ = h.controller.Submit(r.Context(), page, sub)
	}

	h.writePage(w, http.StatusOK, page, r.Header.Get("X-Requested-With") == "XMLHttpRequest")
}

// Results re-renders a stored run.
func (h *Handlers) Results(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	page := NewPage()

	run, err := h.runs.Get(r.Context(), id)
	if err != nil {
		page.showError(userMessage(err))
		h.writePage(w, errors.HTTPStatus(errors.AsStandard(err).Code), page, false)
		return
	}

	fragments, err := h.renderer.RenderAll(run.Response)
	if err != nil {
		page.showError(err.Error())
		h.writePage(w, http.StatusInternalServerError, page, false)
		return
	}
	page.showResults(fragments, run.ID)
	h.writePage(w, http.StatusOK, page, false)
}

func (h *Handlers) writePage(w http.ResponseWriter, status int, page *Page, fragment bool) {
	name := "page"
	if fragment {
		name = "panels"
	}

	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, name, newPageView(page.State())); err != nil {
		h.logger.Error("failed to render page", map[string]interface{}{"error": err.Error()})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
