package api

import (
	"encoding/json"
	"net/http"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/models"
)

func respondWithJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError maps err to its HTTP status and writes {"detail": ...}.
func respondWithError(w http.ResponseWriter, err error) {
	stdErr := errors.AsStandard(err)
	respondWithJSON(w, errors.HTTPStatus(stdErr.Code), models.ErrorResponse{Detail: stdErr.Error()})
}
