// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package chat

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type fakeCompletion struct {
	content  string
	err      error
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompletion) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func TestReply(t *testing.T) {
	t.Run("assembles system, history, and user messages", func(t *testing.T) {
		client := &fakeCompletion{content: "answer"}
		r := &Responder{client: client, cfg: DefaultResponderConfig()}

		history := []HistoryPair{
			{User: "q1", Assistant: "a1"},
			{User: "q2", Assistant: "a2"},
		}
		reply, err := r.Reply(context.Background(), "q3", history)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if reply != "answer" {
			t.Errorf("Expected answer, got %q", reply)
		}

		msgs := client.requests[0].Messages
		// system + 2 pairs + final user message
		if len(msgs) != 6 {
			t.Fatalf("Expected 6 messages, got %d", len(msgs))
		}
		if msgs[0].Role != openai.ChatMessageRoleSystem {
			t.Errorf("First message should be system, got %s", msgs[0].Role)
		}
		if msgs[5].Role != openai.ChatMessageRoleUser || msgs[5].Content != "q3" {
			t.Errorf("Last message should be the new user message, got %+v", msgs[5])
		}
	})

	t.Run("history trimmed to the last three pairs", func(t *testing.T) {
		client := &fakeCompletion{content: "answer"}
		r := &Responder{client: client, cfg: DefaultResponderConfig()}

		history := []HistoryPair{
			{User: "old", Assistant: "old"},
			{User: "q1", Assistant: "a1"},
			{User: "q2", Assistant: "a2"},
			{User: "q3", Assistant: "a3"},
		}
		if _, err := r.Reply(context.Background(), "now", history); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		msgs := client.requests[0].Messages
		// system + 3 pairs + user message
		if len(msgs) != 8 {
			t.Fatalf("Expected 8 messages, got %d", len(msgs))
		}
		if msgs[1].Content != "q1" {
			t.Errorf("Oldest pair should be dropped, first history message is %q", msgs[1].Content)
		}
	})

	t.Run("non-retryable error fails immediately", func(t *testing.T) {
		client := &fakeCompletion{err: errors.New("invalid api key")}
		r := &Responder{client: client, cfg: DefaultResponderConfig()}

		if _, err := r.Reply(context.Background(), "q", nil); err == nil {
			t.Fatal("Expected error")
		}
		if len(client.requests) != 1 {
			t.Errorf("Expected single attempt, got %d", len(client.requests))
		}
	})

	t.Run("rate limit status retries until success", func(t *testing.T) {
		client := &rateLimitedCompletion{failures: 2, content: "answer"}
		r := &Responder{client: client, cfg: DefaultResponderConfig(), retryWait: time.Millisecond}

		reply, err := r.Reply(context.Background(), "q", nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if reply != "answer" {
			t.Errorf("Expected answer after retries, got %q", reply)
		}
		if client.calls != 3 {
			t.Errorf("Expected 3 attempts, got %d", client.calls)
		}
	})

	t.Run("error mentioning 429 without the status is not retried", func(t *testing.T) {
		client := &fakeCompletion{err: errors.New(`model "gpt-429" not found`)}
		r := &Responder{client: client, cfg: DefaultResponderConfig(), retryWait: time.Millisecond}

		if _, err := r.Reply(context.Background(), "q", nil); err == nil {
			t.Fatal("Expected error")
		}
		if len(client.requests) != 1 {
			t.Errorf("Expected single attempt, got %d", len(client.requests))
		}
	})
}

// rateLimitedCompletion returns HTTP 429 API errors for the first
// failures calls, then succeeds.
type rateLimitedCompletion struct {
	failures int
	content  string
	calls    int
}

func (f *rateLimitedCompletion) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	if f.calls <= f.failures {
		return openai.ChatCompletionResponse{}, &openai.APIError{
			HTTPStatusCode: http.StatusTooManyRequests,
			Message:        "rate limit exceeded",
		}
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}
