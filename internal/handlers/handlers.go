package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/peakscape/tours-api/internal/apperr"
	"github.com/peakscape/tours-api/pkg/logger"
)

// production switches error output: operational messages pass through either
// way, everything else collapses to a generic 500 body outside development.
var production bool

func SetProduction(p bool) {
	production = p
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

func writeList(w http.ResponseWriter, statusCode int, results int, data interface{}) {
	writeJSON(w, statusCode, map[string]interface{}{
		"status":  "success",
		"results": results,
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		statusCode := appErr.Kind.StatusCode()
		if statusCode >= 500 {
			logger.ErrorContext(r.Context(), "Request failed", "error", err)
		}
		writeJSON(w, statusCode, map[string]interface{}{
			"status":  statusWord(statusCode),
			"message": appErr.Message,
		})
		return
	}

	// Unknown failure. Never leak internals in production.
	logger.ErrorContext(r.Context(), "Request failed", "error", err)
	message := "something went very wrong"
	if !production {
		message = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}

func statusWord(statusCode int) string {
	if statusCode >= 500 {
		return "error"
	}
	return "fail"
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.NewValidation("invalid JSON payload")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewValidation("invalid ID")
	}
	return id, nil
}
