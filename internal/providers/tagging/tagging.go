// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package tagging derives short topic tags from a transcript through an
// OpenAI-compatible completion endpoint. Tag evaluation is expensive on the
// model side, so the generator is guarded by a fixed-size admission gate:
// callers beyond the limit wait their turn rather than erroring.
package tagging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
)

const systemPrompt = `You generate short topic tags for educational video transcripts.
Reply with a single comma-separated list of 3-10 lowercase tags, nothing else.
Tags are one to three words each. No numbering, no explanations.`

// Config holds tag generation settings.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL string
	APIKey  string
	Model   string

	// MaxConcurrent bounds simultaneous model evaluations.
	MaxConcurrent int64

	// MaxTranscriptChars truncates very long transcripts before generation
	// to stay inside the model's context budget.
	MaxTranscriptChars int

	RequestTimeout time.Duration
}

// DefaultConfig returns production defaults for the tag provider.
func DefaultConfig() Config {
	return Config{
		Model:              "llama-3.1-8b-instant",
		MaxConcurrent:      2,
		MaxTranscriptChars: 6000,
		RequestTimeout:     60 * time.Second,
	}
}

type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces deduplicated tags for a transcript.
type Generator struct {
	client completionClient
	gate   *semaphore.Weighted
	cfg    Config
	logger zerolog.Logger
}

// New creates a tag generator for the configured endpoint.
func New(cfg Config) *Generator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		gate:   semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:    cfg,
		logger: logging.With().Str("component", "tagging").Logger(),
	}
}

// Tags returns an ordered, deduplicated tag list for the transcript.
// The call blocks while the admission gate is full; a canceled context
// while waiting returns the context error.
func (g *Generator) Tags(ctx context.Context, transcript string) ([]string, error) {
	waitStart := time.Now()
	if err := g.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire tag gate: %w", err)
	}
	defer g.gate.Release(1)
	metrics.TagGateWait.Observe(time.Since(waitStart).Seconds())

	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	if g.cfg.MaxTranscriptChars > 0 && len(transcript) > g.cfg.MaxTranscriptChars {
		transcript = transcript[:g.cfg.MaxTranscriptChars]
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	metrics.ProviderRequestDuration.WithLabelValues("tagging").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in model response")
	}

	tags := ParseTags(resp.Choices[0].Message.Content)
	g.logger.Debug().Int("count", len(tags)).Msg("Tags generated")
	return tags, nil
}

// ParseTags splits a model reply into an ordered, deduplicated tag list.
// Newlines are treated as separators alongside commas.
func ParseTags(raw string) []string {
	parts := strings.Split(strings.ReplaceAll(raw, "\n", ","), ",")

	seen := make(map[string]struct{}, len(parts))
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		tag := strings.ToLower(strings.TrimSpace(p))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
