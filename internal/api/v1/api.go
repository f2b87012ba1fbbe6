// Package v1 implements the native control API. It exposes the
// orchestrator facade over HTTP so a frontend or script can drive the
// acquisition pipeline.
package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Pipeline is the slice of orchestrator behavior the API drives.
type Pipeline interface {
	Enqueue(ctx context.Context, externalID, title string) error
	ManualPause(ctx context.Context, id string) error
	ManualResume(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	SetRestrictedOnly(ctx context.Context, enabled bool) error
	Monitoring(id string) bool
}

// Server is the v1 API server.
type Server struct {
	pipeline Pipeline
	log      *slog.Logger
}

// New creates a new v1 API server.
func New(pipeline Pipeline, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		pipeline: pipeline,
		log:      log.With("component", "api"),
	}
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Items
	mux.HandleFunc("POST /api/v1/items", s.enqueueItem)
	mux.HandleFunc("GET /api/v1/items/{id}", s.getItem)
	mux.HandleFunc("DELETE /api/v1/items/{id}", s.cancelItem)
	mux.HandleFunc("POST /api/v1/items/{id}/pause", s.pauseItem)
	mux.HandleFunc("POST /api/v1/items/{id}/resume", s.resumeItem)

	// Network policy
	mux.HandleFunc("PUT /api/v1/network/policy", s.setNetworkPolicy)

	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// pathItemID extracts the item id from the URL path.
func pathItemID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", fmt.Errorf("missing path parameter: id")
	}
	return id, nil
}

// Handlers

func (s *Server) enqueueItem(w http.ResponseWriter, r *http.Request) {
	var req enqueueItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "id is required")
		return
	}

	if err := s.pipeline.Enqueue(r.Context(), req.ID, req.Title); err != nil {
		writeError(w, http.StatusBadGateway, "ENQUEUE_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, itemResponse{
		ID:         req.ID,
		Title:      req.Title,
		Monitoring: s.pipeline.Monitoring(req.ID),
	})
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{
		ID:         id,
		Monitoring: s.pipeline.Monitoring(id),
	})
}

func (s *Server) cancelItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	if err := s.pipeline.Cancel(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "CANCEL_FAILED", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) pauseItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	if err := s.pipeline.ManualPause(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, "PAUSE_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{
		ID:         id,
		Monitoring: s.pipeline.Monitoring(id),
	})
}

func (s *Server) resumeItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathItemID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", err.Error())
		return
	}

	if err := s.pipeline.ManualResume(r.Context(), id); err != nil {
		writeError(w, http.StatusBadGateway, "RESUME_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, itemResponse{
		ID:         id,
		Monitoring: s.pipeline.Monitoring(id),
	})
}

func (s *Server) setNetworkPolicy(w http.ResponseWriter, r *http.Request) {
	var req networkPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.RestrictedOnly == nil {
		writeError(w, http.StatusBadRequest, "INVALID_POLICY", "restricted_only is required")
		return
	}

	if err := s.pipeline.SetRestrictedOnly(r.Context(), *req.RestrictedOnly); err != nil {
		writeError(w, http.StatusInternalServerError, "POLICY_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, networkPolicyResponse{RestrictedOnly: *req.RestrictedOnly})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
