package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bnema/blobstream/internal/domain"
	"github.com/bnema/blobstream/internal/infrastructure/logger"
)

// defaultErrMsg is what clients see for unexpected internal failures; the
// real error travels in the diagnostic field.
const defaultErrMsg = "something went wrong"

// failure is the structured error envelope every non-2xx JSON response uses.
type failure struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Err     string `json:"err,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("failed to encode response: %v", err)
	}
}

func respondErr(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, failure{Status: status, Message: message})
}

// respondInternal hides the raw error behind the generic message while
// keeping it available as a diagnostic payload.
func respondInternal(w http.ResponseWriter, err error) {
	logger.Error.Printf("internal error: %v", err)
	respondJSON(w, http.StatusInternalServerError, failure{
		Status:  http.StatusInternalServerError,
		Message: defaultErrMsg,
		Err:     err.Error(),
	})
}

// respondStoreErr maps blob lookup failures onto the error taxonomy.
func respondStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "File not found")
		return
	}
	respondInternal(w, err)
}
