package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/reputation-engine/internal/errors"
	"github.com/reputation-engine/internal/logging"
	"github.com/reputation-engine/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// ErrCodeUnauthorized rejects admin calls without the operator token
const ErrCodeUnauthorized = "UNAUTHORIZED"

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondServiceError renders err through the error taxonomy.
// 4xx errors pass through with their details; anything else is logged and
// masked, except configuration errors whose message names the missing key.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	body := catErr.ToServiceError()
	logger := logging.FromContext(r.Context()).WithFields(map[string]interface{}{
		"code":     catErr.Code,
		"category": string(catErr.Category),
	})

	switch {
	case apperrors.IsUserError(catErr):
		if retryAfter, ok := catErr.Details["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		}
		if apperrors.IsRejection(catErr) {
			logger.Debug("request rejected")
		}
	case apperrors.IsConfigurationError(catErr):
		logger.WithError(err).Error("request failed")
		body.Details = nil
	default:
		logger.WithError(err).Error("request failed")
		body = &types.ServiceError{Code: catErr.Code, Message: "An internal error occurred"}
	}

	respondJSON(w, apperrors.GetHTTPStatusCode(catErr), ErrorResponse{Error: *body})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body. An empty body leaves v untouched.
func parseJSONBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
