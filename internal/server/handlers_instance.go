package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gpurig/rig/internal/models"
	"github.com/gpurig/rig/internal/rules"
	"github.com/gpurig/rig/internal/vast"
)

func (s *Server) providerOrError(w http.ResponseWriter) bool {
	if s.provider == nil {
		writeError(w, errUnavailable{feature: "provider API"})
		return false
	}
	return true
}

func instanceID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeError(w, &models.ValidationError{Field: "id", Message: "instance id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	instances, err := s.provider.ListInstances(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instances": instances})
}

func (s *Server) handleShowInstance(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	inst, err := s.provider.ShowInstance(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type createInstanceRequest struct {
	OfferID  int               `json:"offer_id"`
	Image    string            `json:"image"`
	Disk     float64           `json:"disk,omitempty"`
	SSH      bool              `json:"ssh,omitempty"`
	Jupyter  bool              `json:"jupyter,omitempty"`
	Direct   bool              `json:"direct,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Label    string            `json:"label,omitempty"`
	BidPrice *float64          `json:"bid_price,omitempty"`
}

type createInstanceResponse struct {
	InstanceID   int      `json:"instance_id"`
	RulesApplied []string `json:"rules_applied,omitempty"`
	RulesFailed  []string `json:"rules_failed,omitempty"`
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	var req createInstanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OfferID <= 0 {
		writeError(w, &models.ValidationError{Field: "offer_id", Message: "offer_id must be a positive integer"})
		return
	}

	id, err := s.provider.CreateInstance(r.Context(), req.OfferID, vast.CreateOptions{
		Image:    req.Image,
		Disk:     req.Disk,
		SSH:      req.SSH,
		Jupyter:  req.Jupyter,
		Direct:   req.Direct,
		Env:      req.Env,
		Label:    req.Label,
		BidPrice: req.BidPrice,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	report := s.rules.Apply(r.Context(), s.provider, id, rules.Input{
		SSH:       req.SSH,
		Jupyter:   req.Jupyter,
		Label:     req.Label,
		PublicKey: s.publicKey,
	})

	writeJSON(w, http.StatusCreated, createInstanceResponse{
		InstanceID:   id,
		RulesApplied: report.Applied,
		RulesFailed:  report.Failed,
	})
}

func (s *Server) handleDestroyInstance(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	if err := s.provider.DestroyInstance(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleInstanceAction covers the state transitions that only take an
// instance id.
func (s *Server) handleInstanceAction(action func(Provider, context.Context, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.providerOrError(w) {
			return
		}
		id, ok := instanceID(w, r)
		if !ok {
			return
		}
		if err := action(s.provider, r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type labelRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleLabelInstance(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	var req labelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.provider.LabelInstance(r.Context(), id, req.Label); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type attachKeyRequest struct {
	PublicKey string `json:"public_key,omitempty"`
}

func (s *Server) handleAttachSSHKey(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	var req attachKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key := req.PublicKey
	if key == "" {
		key = s.publicKey
	}
	if err := s.provider.AttachSSHKey(r.Context(), id, key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleInstanceLogs(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	text, err := s.provider.Logs(r.Context(), id, vast.LogOptions{
		Tail:       q.Get("tail"),
		Filter:     q.Get("filter"),
		DaemonLogs: q.Get("daemon") == "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

type instanceCommandRequest struct {
	Command string `json:"command"`
}

func (s *Server) handleInstanceCommand(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	var req instanceCommandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	output, err := s.provider.ExecuteCommand(r.Context(), id, req.Command)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output})
}

func (s *Server) handleSSHInfo(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	id, ok := instanceID(w, r)
	if !ok {
		return
	}
	ep, err := s.provider.SSHInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (s *Server) handleSearchOffers(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	q := r.URL.Query()
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offers, err := s.provider.SearchOffers(r.Context(), vast.OfferQuery{
		Query: q.Get("query"),
		Limit: limit,
		Order: q.Get("order"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"offers": offers})
}

func (s *Server) handleSearchVolumes(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	volumes, err := s.provider.SearchVolumes(r.Context(), r.URL.Query().Get("query"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"volumes": volumes})
}

func (s *Server) handleSearchTemplates(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	templates, err := s.provider.SearchTemplates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

func (s *Server) handleShowUser(w http.ResponseWriter, r *http.Request) {
	if !s.providerOrError(w) {
		return
	}
	user, err := s.provider.ShowUser(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, errUnavailable{feature: "audit journal"})
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
