// Package api serves the scoring endpoint, memo downloads and run history.
package api

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/common/logger"
	"cashflow-scorecard/internal/common/metrics"
	"cashflow-scorecard/internal/common/validation"
	"cashflow-scorecard/internal/models"
	"cashflow-scorecard/internal/runs"
	"cashflow-scorecard/internal/scoring/pipeline"
	scoringvalidation "cashflow-scorecard/internal/scoring/validation"
	"cashflow-scorecard/internal/storage"
)

const (
	FieldBusinessName = "business_name"

	multipartMemory     = 8 << 20
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// RunIDHeader carries the id of the stored run on a successful score.
const RunIDHeader = "X-Run-ID"

// WindowScorer scores one window; *pipeline.Pipeline implements it.
type WindowScorer interface {
	ScoreWindow(ctx context.Context, req pipeline.Request) (models.WindowResult, error)
}

type ScoreController interface {
	Score(w http.ResponseWriter, r *http.Request)
	Download(w http.ResponseWriter, r *http.Request)
	ScoreResponseSchema(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
}

type scoreControllerImpl struct {
	scorer         WindowScorer
	store          *storage.Store
	runs           *runs.Service
	windows        []models.Window
	maxUploadBytes int64
	logger         logger.Logger
}

func NewScoreController(scorer WindowScorer, store *storage.Store, runService *runs.Service, windows []models.Window, maxUploadMB int, log logger.Logger) ScoreController {
	if len(windows) == 0 {
		windows = models.ExpectedWindows
	}
	return &scoreControllerImpl{
		scorer:         scorer,
		store:          store,
		runs:           runService,
		windows:        windows,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

// RegisterRoutes mounts the scoring API on router.
func RegisterRoutes(router *mux.Router, c ScoreController) {
	router.HandleFunc("/score/", c.Score).Methods(http.MethodPost)
	router.HandleFunc("/download/{business}/{filename}", c.Download).Methods(http.MethodGet)
	router.HandleFunc("/schema/score-response", c.ScoreResponseSchema).Methods(http.MethodGet)
	router.HandleFunc("/runs/{business}", c.History).Methods(http.MethodGet)
}

func fileField(kind string, window models.Window) string {
	return kind + "_" + string(window)
}

// formFile returns the first non-empty file part named field.
func formFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, fh := range form.File[field] {
		if fh.Size > 0 {
			return fh
		}
	}
	return nil
}

func (c *scoreControllerImpl) Score(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		metrics.ScoreRequests.WithLabelValues("bad_request").Inc()
		respondWithError(w, errors.NewIncorrectMultipartError("form", err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			c.logger.Debug("failed to remove multipart temp data", map[string]interface{}{"error": err.Error()})
		}
	}()

	businessName := r.FormValue(FieldBusinessName)
	var missing []string
	if businessName == "" {
		missing = append(missing, FieldBusinessName)
	}
	for _, win := range c.windows {
		for _, kind := range []string{storage.KindBankTx, storage.KindPnL} {
			if field := fileField(kind, win); formFile(r.MultipartForm, field) == nil {
				missing = append(missing, field)
			}
		}
	}
	if len(missing) > 0 {
		metrics.ScoreRequests.WithLabelValues("bad_request").Inc()
		respondWithError(w, errors.NewRequiredParamsMissingError(missing))
		return
	}

	slug := storage.Slug(businessName)
	if slug == "" {
		metrics.ScoreRequests.WithLabelValues("bad_request").Inc()
		respondWithError(w, errors.NewInvalidBusinessNameError(businessName))
		return
	}

	log := c.logger.WithFields(map[string]interface{}{"business": slug})
	resp := models.ScoreResponse{}
	for _, win := range c.windows {
		result, err := c.scoreWindow(r, businessName, slug, win)
		if err != nil {
			stdErr := errors.NewScoringFailedError(string(win), err)
			log.Error("window processing failed", map[string]interface{}{"window": string(win), "error": stdErr.Error()})
			metrics.ScoreRequests.WithLabelValues("error").Inc()
			respondWithError(w, stdErr)
			return
		}
		resp[win] = result
	}

	run := c.runs.NewRun(businessName, slug, resp)
	if err := c.runs.Record(r.Context(), run); err != nil {
		log.Warn("run persisted partially", map[string]interface{}{"runId": run.ID, "error": err.Error()})
	}

	metrics.ScoreRequests.WithLabelValues("ok").Inc()
	w.Header().Set(RunIDHeader, run.ID)
	respondWithJSON(w, http.StatusOK, resp)
}

func (c *scoreControllerImpl) scoreWindow(r *http.Request, businessName, slug string, win models.Window) (models.WindowResult, error) {
	files := scoringvalidation.Files{}
	for _, kind := range []string{storage.KindBankTx, storage.KindPnL, storage.KindVendors} {
		fh := formFile(r.MultipartForm, fileField(kind, win))
		if fh == nil {
			continue
		}
		path, err := c.saveUpload(fh, slug, kind, win)
		if err != nil {
			return models.WindowResult{}, err
		}
		switch kind {
		case storage.KindBankTx:
			files.BankTx = path
		case storage.KindPnL:
			files.PnL = path
		case storage.KindVendors:
			files.Vendors = path
		}
	}

	return c.scorer.ScoreWindow(r.Context(), pipeline.Request{
		BusinessName: businessName,
		Slug:         slug,
		Window:       win,
		Files:        files,
	})
}

func (c *scoreControllerImpl) saveUpload(fh *multipart.FileHeader, slug, kind string, win models.Window) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", errors.NewIncorrectMultipartError(fileField(kind, win), err)
	}
	defer src.Close()
	return c.store.SaveUpload(slug, kind, win, src)
}

func (c *scoreControllerImpl) Download(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	f, info, err := c.store.Open(vars["business"], vars["filename"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+info.Name()+`"`)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (c *scoreControllerImpl) ScoreResponseSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, validation.ScoreResponseSchema)
}

func (c *scoreControllerImpl) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithJSON(w, http.StatusBadRequest, models.ErrorResponse{Detail: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := c.runs.History(r.Context(), mux.Vars(r)["business"], limit)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if records == nil {
		records = []models.RunWindowRecord{}
	}
	respondWithJSON(w, http.StatusOK, records)
}
