// Package api is the thin HTTP/JSON surface over the research control
// plane: one research endpoint, the websocket progress channel, health,
// and metrics.
package api

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/probelab/deepscout/internal/config"
	"github.com/probelab/deepscout/internal/research"
	"github.com/probelab/deepscout/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Router wires the HTTP surface.
type Router struct {
	mux          *http.ServeMux
	cfg          *config.Settings
	orchestrator *research.Orchestrator
	hub          *websocket.Hub
	version      string
}

// NewRouter creates the router. A nil orchestrator means no language model
// is configured; the research endpoint then answers 503.
func NewRouter(cfg *config.Settings, orchestrator *research.Orchestrator, hub *websocket.Hub, version string) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		cfg:          cfg,
		orchestrator: orchestrator,
		hub:          hub,
		version:      version,
	}
	r.routes()
	return r
}

func (r *Router) routes() {
	r.mux.HandleFunc("/api/research", r.handleResearch)
	r.mux.HandleFunc("/api/version", r.handleVersion)
	r.mux.HandleFunc("/healthz", r.handleHealth)
	r.mux.Handle("/metrics", promhttp.Handler())
	if r.hub != nil {
		r.mux.HandleFunc("/api/research/ws", r.hub.HandleWebSocket)
	}
}

// ServeHTTP implements http.Handler with panic recovery: bugs surface as
// 500, never as a dropped connection.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("path", req.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("Panic in HTTP handler")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}()
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ready":  r.orchestrator != nil,
	})
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": r.version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
