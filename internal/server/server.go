// Package server exposes rig's operations as an HTTP JSON API. Every
// operation is synchronous request/response; the daemon holds no task
// state between requests.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gpurig/rig/internal/audit"
	"github.com/gpurig/rig/internal/logging"
	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/rules"
	"github.com/gpurig/rig/internal/vast"
)

// TaskService is the remote background-task surface the server fronts.
type TaskService interface {
	Launch(ctx context.Context, endpoint models.Endpoint, command, taskName string) (*models.Task, error)
	Status(ctx context.Context, endpoint models.Endpoint, taskID string, pid, tailLines int) (*models.TaskStatus, error)
	Kill(ctx context.Context, endpoint models.Endpoint, taskID string, pid int) (*models.KillResult, error)
	Exec(ctx context.Context, endpoint models.Endpoint, command string, timeout time.Duration) (*models.ExecResult, error)
	FetchLog(ctx context.Context, endpoint models.Endpoint, taskID string, w io.Writer) (int64, error)
}

// Provider is the slice of the rental provider client the server uses.
type Provider interface {
	rules.Provider
	ShowUser(ctx context.Context) (*models.UserInfo, error)
	ListInstances(ctx context.Context, owner string) ([]models.Instance, error)
	ShowInstance(ctx context.Context, instanceID int) (*models.Instance, error)
	CreateInstance(ctx context.Context, offerID int, opts vast.CreateOptions) (int, error)
	DestroyInstance(ctx context.Context, instanceID int) error
	StartInstance(ctx context.Context, instanceID int) error
	StopInstance(ctx context.Context, instanceID int) error
	RebootInstance(ctx context.Context, instanceID int) error
	RecycleInstance(ctx context.Context, instanceID int) error
	SearchOffers(ctx context.Context, q vast.OfferQuery) ([]models.Offer, error)
	SearchVolumes(ctx context.Context, query string, limit int) ([]models.VolumeOffer, error)
	SearchTemplates(ctx context.Context) ([]models.Template, error)
	Logs(ctx context.Context, instanceID int, opts vast.LogOptions) (string, error)
	ExecuteCommand(ctx context.Context, instanceID int, command string) (string, error)
	SSHInfo(ctx context.Context, instanceID int) (*models.Endpoint, error)
}

// Options wires the server's collaborators. Provider and Journal may be
// nil; the corresponding routes then report the feature as unavailable.
type Options struct {
	Tasks     TaskService
	Provider  Provider
	Journal   *audit.Journal
	Rules     rules.RuleSet
	PublicKey string
}

// Server is the HTTP tool API.
type Server struct {
	tasks     TaskService
	provider  Provider
	journal   *audit.Journal
	rules     rules.RuleSet
	publicKey string
	logger    zerolog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	return &Server{
		tasks:     opts.Tasks,
		provider:  opts.Provider,
		journal:   opts.Journal,
		rules:     opts.Rules,
		publicKey: opts.PublicKey,
		logger:    logging.Component("server"),
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/tasks", s.handleLaunchTask).Methods(http.MethodPost)
	v1.HandleFunc("/tasks/{id}", s.handleTaskStatus).Methods(http.MethodGet)
	v1.HandleFunc("/tasks/{id}", s.handleKillTask).Methods(http.MethodDelete)
	v1.HandleFunc("/tasks/{id}/log", s.handleTaskLog).Methods(http.MethodGet)
	v1.HandleFunc("/exec", s.handleExec).Methods(http.MethodPost)

	v1.HandleFunc("/instances", s.handleListInstances).Methods(http.MethodGet)
	v1.HandleFunc("/instances", s.handleCreateInstance).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}", s.handleShowInstance).Methods(http.MethodGet)
	v1.HandleFunc("/instances/{id}", s.handleDestroyInstance).Methods(http.MethodDelete)
	v1.HandleFunc("/instances/{id}/start", s.handleInstanceAction(Provider.StartInstance)).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/stop", s.handleInstanceAction(Provider.StopInstance)).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/reboot", s.handleInstanceAction(Provider.RebootInstance)).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/recycle", s.handleInstanceAction(Provider.RecycleInstance)).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/label", s.handleLabelInstance).Methods(http.MethodPut)
	v1.HandleFunc("/instances/{id}/ssh-key", s.handleAttachSSHKey).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/logs", s.handleInstanceLogs).Methods(http.MethodGet)
	v1.HandleFunc("/instances/{id}/command", s.handleInstanceCommand).Methods(http.MethodPost)
	v1.HandleFunc("/instances/{id}/ssh-info", s.handleSSHInfo).Methods(http.MethodGet)

	v1.HandleFunc("/offers", s.handleSearchOffers).Methods(http.MethodGet)
	v1.HandleFunc("/volumes", s.handleSearchVolumes).Methods(http.MethodGet)
	v1.HandleFunc("/templates", s.handleSearchTemplates).Methods(http.MethodGet)
	v1.HandleFunc("/user", s.handleShowUser).Methods(http.MethodGet)
	v1.HandleFunc("/audit/recent", s.handleAuditRecent).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recoverMiddleware keeps a panicking handler from taking down the daemon.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("handler panicked")
				writeError(w, errInternal{})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// record appends an audit entry when the journal is configured. Journal
// failures are logged, never surfaced to the caller.
func (s *Server) record(ctx context.Context, entry audit.Entry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("op", entry.Op).Msg("audit append failed")
	}
}
