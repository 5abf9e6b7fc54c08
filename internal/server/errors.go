package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/ssh"
	"github.com/gpurig/rig/internal/task"
	"github.com/gpurig/rig/internal/vast"
)

// Error classes returned in failure payloads.
const (
	classValidation     = "validation"
	classAuthentication = "authentication"
	classNotFound       = "not_found"
	classTimeout        = "timeout"
	classConnectivity   = "connectivity"
	classPartialFailure = "partial_failure"
	classUnavailable    = "unavailable"
	classProvider       = "provider"
	classInternal       = "internal"
)

// errInternal stands in for a panic recovered mid-handler.
type errInternal struct{}

func (errInternal) Error() string { return "internal server error" }

// errUnavailable marks a feature whose collaborator is not configured.
type errUnavailable struct{ feature string }

func (e errUnavailable) Error() string { return e.feature + " is not configured" }

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Class   string `json:"class"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// classify maps an operation error onto an HTTP status and error class.
func classify(err error) (int, string) {
	var unavailable errUnavailable
	var apiErr *vast.APIError

	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest, classValidation
	case errors.Is(err, ssh.ErrAuthentication),
		errors.Is(err, ssh.ErrPassphraseRequired):
		return http.StatusUnauthorized, classAuthentication
	case errors.Is(err, task.ErrRemoteNotFound):
		return http.StatusNotFound, classNotFound
	case errors.Is(err, ssh.ErrExecTimeout),
		errors.Is(err, vast.ErrReadyTimeout):
		return http.StatusGatewayTimeout, classTimeout
	case errors.Is(err, ssh.ErrConnectivity):
		return http.StatusBadGateway, classConnectivity
	case errors.Is(err, task.ErrPartialFailure):
		return http.StatusInternalServerError, classPartialFailure
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, classUnavailable
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return http.StatusNotFound, classNotFound
		}
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			return http.StatusUnauthorized, classAuthentication
		}
		return http.StatusBadGateway, classProvider
	default:
		return http.StatusInternalServerError, classInternal
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, class := classify(err)
	writeJSON(w, status, errorBody{Error: errorDetail{
		Class:   class,
		Message: err.Error(),
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
