package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cuemby/swarmroll/pkg/deploy"
	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/cuemby/swarmroll/pkg/image"
	"github.com/cuemby/swarmroll/pkg/metrics"
	"github.com/cuemby/swarmroll/pkg/security"
	"github.com/cuemby/swarmroll/pkg/storage"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/gorilla/mux"
)

// DeployRequest is the deploy webhook body. No services means every
// registered service.
type DeployRequest struct {
	Services []string `json:"services"`
}

// DeployResponse is the deploy webhook reply
type DeployResponse struct {
	deploy.Payload
	RolloutID string           `json:"rollout_id,omitempty"`
	Skipped   []deploy.Skipped `json:"skipped,omitempty"`
}

// ServiceRequest is the body of service create and update calls
type ServiceRequest struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "Failed to read request body")
		return
	}

	if err := s.verifier.Verify(r.Header.Get(security.SignatureHeader), body); err != nil {
		if errors.Is(err, security.ErrUnsupportedAlgorithm) {
			metrics.WebhookRejectionsTotal.WithLabelValues("unsupported_algorithm").Inc()
			writeError(w, http.StatusNotImplemented, "Not implemented", "Only sha1 and sha256 are supported as the signature algorithm")
			return
		}
		metrics.WebhookRejectionsTotal.WithLabelValues("invalid_signature").Inc()
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected deploy webhook")
		writeError(w, http.StatusForbidden, "Forbidden", "Invalid signature")
		return
	}

	var req DeployRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Bad request", "Invalid JSON body: "+err.Error())
			return
		}
	}

	// A disconnecting caller must not abort a rollout halfway
	ctx := context.WithoutCancel(r.Context())
	result, err := s.deployer.Rollout(ctx, s.platform, req.Services)
	if errors.Is(err, deploy.ErrRolloutInProgress) {
		writeError(w, http.StatusConflict, "Rollout in progress", err.Error())
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Rollout could not start")
		writeError(w, http.StatusInternalServerError, "Stack update failed", err.Error())
		return
	}

	writeJSON(w, result.StatusCode(), DeployResponse{
		Payload:   result.Payload(),
		RolloutID: result.RolloutID,
		Skipped:   result.Skipped,
	})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.ListServices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	service, err := s.store.GetService(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service)
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := deploy.Statuses(r.Context(), s.store, s.platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Bad request", "name is required")
		return
	}
	if err := image.Validate(req.Repository, req.Tag); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", err.Error())
		return
	}

	service := &types.ServiceRef{Name: req.Name, Repository: req.Repository, Tag: req.Tag}
	if err := s.store.CreateService(r.Context(), service); err != nil {
		writeStoreError(w, err)
		return
	}

	s.publisher.Publish(&events.Event{
		Type:     events.EventServiceRegistered,
		Service:  service.Name,
		Message:  "Service registered",
		Metadata: map[string]string{"image": service.Image()},
	})
	writeJSON(w, http.StatusCreated, service)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := mux.Vars(r)["name"]
	if req.Name != "" && req.Name != name {
		writeError(w, http.StatusBadRequest, "Bad request", "name in body does not match the URL")
		return
	}
	if err := image.Validate(req.Repository, req.Tag); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", err.Error())
		return
	}

	service := &types.ServiceRef{Name: name, Repository: req.Repository, Tag: req.Tag}
	if err := s.store.UpdateService(r.Context(), service); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.store.DeleteService(r.Context(), name); err != nil {
		writeStoreError(w, err)
		return
	}

	s.publisher.Publish(&events.Event{
		Type:    events.EventServiceUnregistered,
		Service: name,
		Message: "Service unregistered",
	})
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, storage.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, title, message string) {
	writeJSON(w, code, deploy.Payload{Error: title, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
