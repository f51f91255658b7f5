// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestHealthEndpoints(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		rt := NewRouter(nil, nil)
		srv := httptest.NewServer(rt.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("Decode body: %v", err)
		}
		if body["status"] != "ok" {
			t.Errorf("Expected status ok, got %q", body["status"])
		}
	})

	t.Run("ready with healthy dependencies", func(t *testing.T) {
		rt := NewRouter(map[string]ReadinessChecker{
			"broker": ReadinessFunc(func(context.Context) error { return nil }),
		}, nil)
		srv := httptest.NewServer(rt.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health/ready")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("ready reports failing dependency", func(t *testing.T) {
		rt := NewRouter(map[string]ReadinessChecker{
			"broker": ReadinessFunc(func(context.Context) error { return nil }),
			"chat-db": ReadinessFunc(func(context.Context) error {
				return errors.New("connection refused")
			}),
		}, nil)
		srv := httptest.NewServer(rt.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/health/ready")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.StatusCode)
		}
		var body struct {
			Status       string            `json:"status"`
			Dependencies map[string]string `json:"dependencies"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("Decode body: %v", err)
		}
		if body.Status != "unavailable" {
			t.Errorf("Expected unavailable, got %q", body.Status)
		}
		if body.Dependencies["broker"] != "ok" {
			t.Errorf("Expected broker ok, got %q", body.Dependencies["broker"])
		}
		if body.Dependencies["chat-db"] != "connection refused" {
			t.Errorf("Expected chat-db error surfaced, got %q", body.Dependencies["chat-db"])
		}
	})

	t.Run("metrics exposed", func(t *testing.T) {
		rt := NewRouter(nil, nil)
		srv := httptest.NewServer(rt.Handler())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
	})
}
