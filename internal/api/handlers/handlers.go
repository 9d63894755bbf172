// Package handlers implements the HTTP handlers for the concierge ops surface.
// The chat endpoint lives outside this service; these routes only expose
// health, build info and read-only views of engine state.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agentoven/concierge/internal/refinement"
	"github.com/agentoven/concierge/pkg/contracts"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const serviceName = "concierge"

// HealthChecker is satisfied by refinement.Store.
type HealthChecker interface {
	Kind() string
	HealthCheck(ctx context.Context) error
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Version string
	Store   contracts.RefinementStore
	Health  HealthChecker
	LLM     contracts.LLMConfigSource
}

// New creates a Handlers instance. If store also implements HealthChecker
// it backs the /health probe.
func New(version string, store contracts.RefinementStore, llm contracts.LLMConfigSource) *Handlers {
	h := &Handlers{Version: version, Store: store, LLM: llm}
	if hc, ok := store.(HealthChecker); ok {
		h.Health = hc
	}
	return h
}

// ── Probes ───────────────────────────────────────────────────

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "healthy", "service": serviceName}
	status := http.StatusOK
	if h.Health != nil {
		body["store"] = h.Health.Kind()
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.Health.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Str("store", h.Health.Kind()).Msg("Health check failed")
			body["status"] = "degraded"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, body)
}

func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.Version, "service": serviceName})
}

// ── Refinement Context ───────────────────────────────────────

// GetRefinement returns the stored refinement context for a thread.
func (h *Handlers) GetRefinement(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		respondError(w, http.StatusServiceUnavailable, "refinement store not configured")
		return
	}
	threadID := chi.URLParam(r, "threadID")
	rc, err := h.Store.Load(r.Context(), threadID)
	if err != nil {
		if errors.Is(err, refinement.ErrStoreUnavailable) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rc == nil {
		respondError(w, http.StatusNotFound, "no refinement context for thread "+threadID)
		return
	}
	respondJSON(w, http.StatusOK, rc)
}

// ── LLM ──────────────────────────────────────────────────────

// GetLLMConfig reports which backend the planner would use right now.
func (h *Handlers) GetLLMConfig(w http.ResponseWriter, r *http.Request) {
	if h.LLM == nil {
		respondJSON(w, http.StatusOK, map[string]bool{"enabled": false})
		return
	}
	cfg, err := h.LLM.LLMConfig(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
