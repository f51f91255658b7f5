// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
)

const systemInstruction = "You are a helpful study assistant. Answer concisely and focus on the learner's question."

// Number of recent user/assistant exchanges included as context.
const historyWindow = 3

// ResponderConfig configures the assistant reply generator.
type ResponderConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	Temperature    float32
	MaxTokens      int
	RequestTimeout time.Duration
	MaxRetries     int
}

// DefaultResponderConfig returns production defaults targeting an
// OpenAI-compatible endpoint.
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		Model:          "llama-3.3-70b-versatile",
		Temperature:    0.5,
		MaxTokens:      1024,
		RequestTimeout: 60 * time.Second,
		MaxRetries:     3,
	}
}

type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Responder generates assistant replies from a user message plus
// rolling conversation history.
type Responder struct {
	client completionClient
	cfg    ResponderConfig
	logger zerolog.Logger

	// retryWait overrides the rate-limit backoff, used in tests.
	retryWait time.Duration
}

// NewResponder creates a responder against the configured endpoint.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("responder requires an API key")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Responder{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logging.With().Str("component", "chat-responder").Logger(),
	}, nil
}

// Reply generates the assistant response to userMessage given recent
// history. Rate-limited requests are retried with a short backoff.
func (r *Responder) Reply(ctx context.Context, userMessage string, history []HistoryPair) (string, error) {
	start := time.Now()
	defer func() {
		metrics.ChatResponderDuration.Observe(time.Since(start).Seconds())
	}()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
	}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, pair := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: pair.User},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: pair.Assistant},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	req := openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		Messages:    messages,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	}

	var lastErr error
	attempts := r.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		reqCtx := ctx
		var cancel context.CancelFunc
		if r.cfg.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, r.cfg.RequestTimeout)
		}
		resp, err := r.client.CreateChatCompletion(reqCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("completion returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		if !isRateLimited(err) {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		r.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Rate limited, retrying")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(r.backoff()):
		}
	}
	return "", fmt.Errorf("chat completion after %d attempts: %w", attempts, lastErr)
}

func (r *Responder) backoff() time.Duration {
	if r.retryWait > 0 {
		return r.retryWait
	}
	return 2 * time.Second
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests
}
