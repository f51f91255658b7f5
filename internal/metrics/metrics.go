// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package metrics provides Prometheus instrumentation for the quiz pipeline
// and the chat service: per-stage pipeline outcomes, provider latency, and
// chat request accounting. Exposed on /metrics by the HTTP shell.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics

	MessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_messages_consumed_total",
			Help: "Total inbound quiz commands received from the broker",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_published_total",
			Help: "Total outbound quiz events published, by status",
		},
		[]string{"status"}, // "COMPLETED", "FAILED"
	)

	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_failures_total",
			Help: "Per-message failures converted to FAILED events, by stage",
		},
		[]string{"stage"}, // "parse", "select", "extract"
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_extraction_duration_seconds",
			Help:    "Duration of one extraction strategy invocation",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"}, // "youtube", "hosted"
	)

	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_cleanup_failures_total",
			Help: "Best-effort artifact cleanup failures (logged, never fatal)",
		},
	)

	// Provider metrics

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of external provider calls",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"}, // "quizgen", "tagging", "transcribe", "youtube"
	)

	QuestionsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_questions_dropped_total",
			Help: "Malformed quiz items dropped during response parsing",
		},
	)

	TagGateWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "provider_tag_gate_wait_seconds",
			Help:    "Time spent waiting for the tag-generation admission gate",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Chat metrics

	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat API requests, by endpoint and outcome",
		},
		[]string{"endpoint", "status"},
	)

	ChatResponderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_responder_duration_seconds",
			Help:    "Duration of LLM response generation for chat messages",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)
