// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package quizgen adapts an OpenAI-compatible chat-completion endpoint into
// the pipeline's quiz generation provider. The endpoint is opaque: any
// service speaking the OpenAI wire format (OpenAI, Groq, a local vLLM) works
// through the base URL setting.
package quizgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
	"github.com/studyloop/studyloop/internal/quiz"
)

const systemPrompt = `You are an AI assistant that generates high-quality, advanced-level multiple-choice quizzes for IT and programming lessons.

Rules for question design:
- Use ONLY the provided transcript.
- Focus on reasoning, application, debugging, architecture, and trade-offs; avoid trivial recall questions.
- Each question must contain:
    - "question": a challenging scenario or conceptual question.
    - "options": array of 3-5 plausible answers with at least one tricky distractor.
    - "correct_index": 0-based index of the correct option.
- Language and difficulty must follow the user metadata.
- Output MUST be valid JSON. No markdown, no code fences, no commentary before or after the JSON.`

// Config holds quiz generation settings.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint. Empty uses api.openai.com.
	BaseURL string
	APIKey  string
	Model   string

	// Temperature and MaxTokens are fixed generation parameters, not
	// per-command knobs.
	Temperature float32
	MaxTokens   int

	RequestTimeout time.Duration
}

// DefaultConfig returns production defaults for the quiz provider.
func DefaultConfig() Config {
	return Config{
		Model:          "llama-3.3-70b-versatile",
		Temperature:    0.35,
		MaxTokens:      2048,
		RequestTimeout: 90 * time.Second,
	}
}

// completionClient is the slice of the go-openai client the generator uses.
// Tests substitute a fake.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces quiz questions from a transcript via the LLM.
type Generator struct {
	client completionClient
	cfg    Config
	logger zerolog.Logger
}

// New creates a quiz generator for the configured endpoint.
func New(cfg Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logging.With().Str("component", "quizgen").Logger(),
	}
}

// quizPayload is the JSON structure the model is instructed to emit.
type quizPayload struct {
	Questions []quiz.Question `json:"questions"`
}

// Generate returns at most cmd.NumQuestions questions derived from the
// transcript, in model order. A response that cannot be parsed as JSON fails
// the whole call; individually malformed questions are dropped with a
// warning and the remaining valid ones are returned.
func (g *Generator) Generate(ctx context.Context, transcript string, cmd *quiz.GenerateQuizCommand) ([]quiz.Question, error) {
	if g.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(transcript, cmd)},
		},
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	metrics.ProviderRequestDuration.WithLabelValues("quizgen").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in model response")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	questions, err := g.parseQuestions(raw, cmd.NumQuestions)
	if err != nil {
		g.logger.Error().Err(err).Str("raw", truncateForLog(raw)).Msg("Quiz response rejected")
		return nil, err
	}
	return questions, nil
}

// parseQuestions normalizes and decodes the model output, dropping
// individually invalid items and truncating to the requested count.
func (g *Generator) parseQuestions(raw string, limit int) ([]quiz.Question, error) {
	candidate, err := NormalizeModelJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload quizPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, fmt.Errorf("decode quiz payload: %w", err)
	}

	questions := make([]quiz.Question, 0, len(payload.Questions))
	for _, q := range payload.Questions {
		if err := q.Validate(); err != nil {
			g.logger.Warn().Err(err).Msg("Dropping invalid question")
			metrics.QuestionsDropped.Inc()
			continue
		}
		questions = append(questions, q)
	}

	if limit > 0 && len(questions) > limit {
		questions = questions[:limit]
	}
	return questions, nil
}

func buildUserPrompt(transcript string, cmd *quiz.GenerateQuizCommand) string {
	var sb strings.Builder
	sb.WriteString("Generate a quiz based strictly on this lesson transcript.\n\n")
	sb.WriteString("Metadata:\n")
	fmt.Fprintf(&sb, "- Course ID: %s\n", cmd.CourseID)
	fmt.Fprintf(&sb, "- Lesson ID: %s\n", cmd.LessonID)
	fmt.Fprintf(&sb, "- Lesson name: %s\n", cmd.LessonName)
	fmt.Fprintf(&sb, "- Language: %s\n", cmd.Language)
	fmt.Fprintf(&sb, "- Difficulty: %s\n", cmd.Difficulty)
	fmt.Fprintf(&sb, "- Number of questions: %d\n", cmd.NumQuestions)
	fmt.Fprintf(&sb, "- Accepted question types: %s\n\n", strings.Join(cmd.QuestionTypes, ", "))
	fmt.Fprintf(&sb, "Transcript:\n\"\"\"%s\"\"\"\n\n", transcript)
	sb.WriteString(`Return ONLY JSON in exactly this structure:

{
  "questions": [
    {
      "question": "string",
      "options": ["A", "B", "C"],
      "correct_index": 0
    }
  ]
}`)
	return sb.String()
}

func truncateForLog(s string) string {
	const max = 500
	if len(s) > max {
		return s[:max]
	}
	return s
}
