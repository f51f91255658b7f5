// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package api provides the HTTP shell: health probes, Prometheus
// metrics, and the optional chat routes, all behind chi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// Ready calls the wrapped function.
func (f ReadinessFunc) Ready(ctx context.Context) error { return f(ctx) }

// ChatRoutes registers chat endpoints on a router. Satisfied by
// chat.Handlers; nil when chat is disabled.
type ChatRoutes interface {
	Register(r chi.Router)
}

// Router assembles the HTTP surface.
type Router struct {
	readiness map[string]ReadinessChecker
	chat      ChatRoutes
}

// NewRouter creates the router shell. checks maps dependency names to
// their readiness probes.
func NewRouter(checks map[string]ReadinessChecker, chat ChatRoutes) *Router {
	if checks == nil {
		checks = map[string]ReadinessChecker{}
	}
	return &Router{readiness: checks, chat: chat}
}

// Handler builds the chi handler tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", rt.Health)
		r.Get("/live", rt.HealthLive)
		r.Get("/ready", rt.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(300, time.Minute))
		if rt.chat != nil {
			rt.chat.Register(r)
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Health reports basic service status.
func (rt *Router) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthLive is the liveness probe: the process is up.
func (rt *Router) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe. It fails when any registered
// dependency check fails, reporting per-dependency status.
func (rt *Router) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(rt.readiness))
	for name, check := range rt.readiness {
		if err := check.Ready(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}

	body := map[string]interface{}{"dependencies": deps}
	if status == http.StatusOK {
		body["status"] = "ready"
	} else {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(body)
}
