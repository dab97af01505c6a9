package handler

import (
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"board-game-suggestor/internal/catalog"
	"board-game-suggestor/internal/model"
	"board-game-suggestor/internal/repository"
	"board-game-suggestor/internal/service"
)

// Error codes returned in ErrorResponse.Error.
const (
	codeBadRequest          = "bad_request"
	codeNotFound            = "not_found"
	codeConflict            = "conflict"
	codeUpstreamError       = "upstream_error"
	codeUpstreamStatus      = "upstream_status"
	codeUpstreamUnavailable = "upstream_unavailable"
	codeInternal            = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message"`
	RequestID string           `json:"requestId,omitempty"`
	Report    *model.RunReport `json:"report,omitempty"`
}

// PendingResponse tells the client to retry the import later.
type PendingResponse struct {
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps err to a status code and writes an ErrorResponse. Errors
// that map to 500 are logged and their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error, report *model.RunReport) {
	status, code := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("Request failed")
		message = http.StatusText(status)
	}

	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: chimiddleware.GetReqID(r.Context()),
		Report:    report,
	})
}

func classify(err error) (int, string) {
	var apiErr *catalog.APIError

	switch {
	case errors.Is(err, service.ErrInvalidUserName),
		errors.Is(err, service.ErrInvalidSort),
		errors.Is(err, errInvalidGameID):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict, codeConflict
	case errors.Is(err, service.ErrCollectionNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrGameNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.As(err, &apiErr):
		return http.StatusNotFound, codeUpstreamError
	case errors.Is(err, catalog.ErrUnavailable):
		return http.StatusBadGateway, codeUpstreamUnavailable
	}

	if code, ok := catalog.StatusCode(err); ok {
		if code >= 400 {
			return code, codeUpstreamStatus
		}
		return http.StatusBadGateway, codeUpstreamStatus
	}

	return http.StatusInternalServerError, codeInternal
}
