// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package quizgen

import (
	"context"
	"errors"
	"io"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/quiz"
)

// fakeClient returns a canned completion response.
type fakeClient struct {
	content string
	err     error
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func newTestGenerator(content string, err error) *Generator {
	return &Generator{
		client: &fakeClient{content: content, err: err},
		cfg:    DefaultConfig(),
		logger: logging.NewTestLogger(io.Discard),
	}
}

func testCommand(n int) *quiz.GenerateQuizCommand {
	return &quiz.GenerateQuizCommand{
		LessonID:      "lesson-1",
		CourseID:      "course-1",
		LessonName:    "Channels",
		VideoURL:      "https://cdn.example.com/v/1.mp4",
		SourceType:    quiz.SourceHosted,
		Language:      "en",
		NumQuestions:  n,
		Difficulty:    "medium",
		QuestionTypes: quiz.DefaultQuestionTypes(),
	}
}

func TestGenerate(t *testing.T) {
	t.Run("fenced JSON response", func(t *testing.T) {
		g := newTestGenerator("```json\n{\"questions\":[{\"question\":\"Q1\",\"options\":[\"A\",\"B\"],\"correct_index\":1}]}\n```", nil)

		questions, err := g.Generate(context.Background(), "transcript", testCommand(10))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(questions) != 1 {
			t.Fatalf("Expected 1 question, got %d", len(questions))
		}
		if questions[0].CorrectIndex != 1 {
			t.Errorf("Expected correct_index=1, got %d", questions[0].CorrectIndex)
		}
	})

	t.Run("prose around JSON recovered", func(t *testing.T) {
		g := newTestGenerator("Here is your quiz: {\"questions\":[{\"question\":\"Q1\",\"options\":[\"A\",\"B\",\"C\"],\"correct_index\":0}]} enjoy!", nil)

		questions, err := g.Generate(context.Background(), "transcript", testCommand(10))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(questions) != 1 {
			t.Errorf("Expected 1 question, got %d", len(questions))
		}
	})

	t.Run("malformed item dropped, valid ones kept", func(t *testing.T) {
		g := newTestGenerator(`{"questions":[
			{"question":"Q1","options":["A","B"],"correct_index":1},
			{"question":"Q2","options":["A","B"],"correct_index":5},
			{"question":"Q3","options":["A","B","C"],"correct_index":2}
		]}`, nil)

		questions, err := g.Generate(context.Background(), "transcript", testCommand(10))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(questions) != 2 {
			t.Fatalf("Expected 2 questions, got %d", len(questions))
		}
		if questions[0].Text != "Q1" || questions[1].Text != "Q3" {
			t.Errorf("Expected Q1 and Q3 preserved in order, got %+v", questions)
		}
	})

	t.Run("truncated to requested count", func(t *testing.T) {
		g := newTestGenerator(`{"questions":[
			{"question":"Q1","options":["A","B"],"correct_index":0},
			{"question":"Q2","options":["A","B"],"correct_index":0},
			{"question":"Q3","options":["A","B"],"correct_index":0}
		]}`, nil)

		questions, err := g.Generate(context.Background(), "transcript", testCommand(2))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(questions) != 2 {
			t.Errorf("Expected min(N,K)=2 questions, got %d", len(questions))
		}
		if questions[0].Text != "Q1" || questions[1].Text != "Q2" {
			t.Errorf("Expected relative order preserved, got %+v", questions)
		}
	})

	t.Run("unparseable response is a hard failure", func(t *testing.T) {
		g := newTestGenerator("I could not generate a quiz for this transcript.", nil)

		if _, err := g.Generate(context.Background(), "transcript", testCommand(10)); err == nil {
			t.Error("Expected error for non-JSON response")
		}
	})

	t.Run("transport error propagates", func(t *testing.T) {
		g := newTestGenerator("", errors.New("connection refused"))

		if _, err := g.Generate(context.Background(), "transcript", testCommand(10)); err == nil {
			t.Error("Expected error from client")
		}
	})
}

func TestNormalizeModelJSON(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, false},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`, false},
		{"surrounding prose", `sure: {"a":1} done`, `{"a":1}`, false},
		{"empty", "   ", "", true},
		{"no braces", "no json here", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeModelJSON(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}
