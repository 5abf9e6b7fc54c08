package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/gpurig/rig/internal/audit"
	"github.com/gpurig/rig/internal/models"
)

// endpointPayload is the JSON form of an SSH destination.
type endpointPayload struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
}

func (p endpointPayload) toEndpoint() models.Endpoint {
	return models.Endpoint{Host: p.Host, Port: p.Port, User: p.User}
}

// endpointFromQuery reads an endpoint from query parameters, used by the
// routes whose body is not JSON (GET, DELETE).
func endpointFromQuery(r *http.Request) (models.Endpoint, error) {
	q := r.URL.Query()
	ep := models.Endpoint{Host: q.Get("host"), User: q.Get("user")}
	if portStr := q.Get("port"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return ep, &models.ValidationError{Field: "port", Message: "port must be an integer"}
		}
		ep.Port = port
	}
	return ep, ep.Validate()
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ValidationError{Field: name, Message: name + " must be an integer"}
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, &models.ValidationError{Field: "body", Message: "malformed request body: " + err.Error()})
		return false
	}
	return true
}

type launchRequest struct {
	Endpoint endpointPayload `json:"endpoint"`
	Command  string          `json:"command"`
	TaskName string          `json:"task_name,omitempty"`
}

func (s *Server) handleLaunchTask(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ep := req.Endpoint.toEndpoint()
	start := time.Now()
	launched, err := s.tasks.Launch(r.Context(), ep, req.Command, req.TaskName)
	s.recordTaskOp(r, "task.launch", ep.String(), taskIDOf(launched), start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, launched)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	ep, err := endpointFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pid, err := intQuery(r, "pid", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	tailLines, err := intQuery(r, "tail_lines", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	status, err := s.tasks.Status(r.Context(), ep, taskID, pid, tailLines)
	s.recordTaskOp(r, "task.status", ep.String(), taskID, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleKillTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	ep, err := endpointFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	pid, err := intQuery(r, "pid", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	result, err := s.tasks.Kill(r.Context(), ep, taskID, pid)
	s.recordTaskOp(r, "task.kill", ep.String(), taskID, start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTaskLog(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	ep, err := endpointFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Buffer the download so a mid-transfer failure still yields a clean
	// JSON error instead of a truncated body.
	var buf bytes.Buffer
	start := time.Now()
	_, err = s.tasks.FetchLog(r.Context(), ep, taskID, &buf)
	s.recordTaskOp(r, "task.log", ep.String(), taskID, start, err)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type execRequest struct {
	Endpoint       endpointPayload `json:"endpoint"`
	Command        string          `json:"command"`
	TimeoutSeconds int             `json:"timeout_seconds,omitempty"`
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	var req execRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.TimeoutSeconds < 0 {
		writeError(w, &models.ValidationError{Field: "timeout_seconds", Message: "timeout must not be negative"})
		return
	}

	ep := req.Endpoint.toEndpoint()
	timeout := time.Duration(req.TimeoutSeconds) * time.Second
	start := time.Now()
	result, err := s.tasks.Exec(r.Context(), ep, req.Command, timeout)
	s.recordTaskOp(r, "exec", ep.String(), "", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recordTaskOp(r *http.Request, op, endpoint, taskID string, start time.Time, err error) {
	entry := audit.Entry{
		Op:       op,
		Endpoint: endpoint,
		TaskID:   taskID,
		Outcome:  "ok",
		Duration: time.Since(start),
	}
	if err != nil {
		entry.Outcome = "error"
		_, entry.ErrorClass = classify(err)
	}
	s.record(r.Context(), entry)
}

func taskIDOf(t *models.Task) string {
	if t == nil {
		return ""
	}
	return t.ID
}
