package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/scorepoll/internal/core/domain"
	"github.com/vncsmyrnk/scorepoll/internal/logger"
)

// JSON-RPC error codes. The -320xx range is reserved for implementation
// defined server errors.
const (
	codeParseError         = -32700
	codeInvalidRequest     = -32600
	codeMethodNotFound     = -32601
	codeInvalidParams      = -32602
	codeInternal           = -32603
	codeNotFound           = -32001
	codeConflict           = -32002
	codeCorrupt            = -32003
	codeStorageUnavailable = -32004
	codeUnauthorized       = -32005
)

var errUnauthorized = errors.New("a valid access token is required")

type apiError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	status  int
}

// toAPIError maps err to a stable code and kind. Invalid input is checked
// first because a rejected vote is also a failed transform.
func toAPIError(err error) apiError {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return apiError{Code: codeInvalidParams, Kind: "invalid_input", Message: err.Error(), status: http.StatusBadRequest}
	case errors.Is(err, domain.ErrPollNotFound):
		return apiError{Code: codeNotFound, Kind: "not_found", Message: err.Error(), status: http.StatusNotFound}
	case errors.Is(err, domain.ErrIDCollision):
		return apiError{Code: codeConflict, Kind: "id_collision", Message: err.Error(), status: http.StatusConflict}
	case errors.Is(err, domain.ErrAlreadyExists):
		return apiError{Code: codeConflict, Kind: "already_exists", Message: err.Error(), status: http.StatusConflict}
	case errors.Is(err, domain.ErrCorrupt):
		return apiError{Code: codeCorrupt, Kind: "corrupt", Message: err.Error(), status: http.StatusInternalServerError}
	case errors.Is(err, domain.ErrStorageUnavailable):
		return apiError{Code: codeStorageUnavailable, Kind: "storage_unavailable", Message: err.Error(), status: http.StatusServiceUnavailable}
	case errors.Is(err, errUnauthorized):
		return apiError{Code: codeUnauthorized, Kind: "unauthorized", Message: err.Error(), status: http.StatusUnauthorized}
	default:
		logger.HTTP().Error("unexpected error", "err", err)
		return internalError()
	}
}

func internalError() apiError {
	return apiError{Code: codeInternal, Kind: "internal", Message: "internal error", status: http.StatusInternalServerError}
}

// writeJSON encodes v before committing the status, so an unencodable value
// is reported as an internal error instead of an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.HTTP().Error("failed to encode response", "err", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]apiError{"error": internalError()})
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		logger.HTTP().Debug("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := toAPIError(err)
	writeJSON(w, apiErr.status, map[string]apiError{"error": apiErr})
}
