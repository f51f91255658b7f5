// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/studyloop/studyloop/internal/providers/transcribe"
	"github.com/studyloop/studyloop/internal/providers/youtube"
	"github.com/studyloop/studyloop/internal/quiz"
)

// Fakes for the collaborator contracts.

type fakeMetadata struct {
	meta *youtube.Metadata
	err  error
}

func (f *fakeMetadata) Lookup(_ context.Context, _ string) (*youtube.Metadata, error) {
	return f.meta, f.err
}

type fakeTranscripts struct {
	text string
	ok   bool
	err  error
}

func (f *fakeTranscripts) Fetch(_ context.Context, _, _ string) (string, bool, error) {
	return f.text, f.ok, f.err
}

type fakeTranscriber struct {
	tr  transcribe.Transcription
	err error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _, _ string) (transcribe.Transcription, error) {
	return f.tr, f.err
}

type fakeQuizzes struct {
	questions  []quiz.Question
	err        error
	transcript string // records what it was called with
	called     bool
}

func (f *fakeQuizzes) Generate(_ context.Context, transcript string, _ *quiz.GenerateQuizCommand) ([]quiz.Question, error) {
	f.called = true
	f.transcript = transcript
	return f.questions, f.err
}

type fakeTags struct {
	tags       []string
	err        error
	transcript string
}

func (f *fakeTags) Tags(_ context.Context, transcript string) ([]string, error) {
	f.transcript = transcript
	return f.tags, f.err
}

func command(kind quiz.SourceKind) *quiz.GenerateQuizCommand {
	return &quiz.GenerateQuizCommand{
		LessonID:     "lesson-1",
		CourseID:     "course-1",
		LessonName:   "Interfaces",
		VideoURL:     "https://www.youtube.com/watch?v=abc123",
		SourceType:   kind,
		Language:     "en",
		NumQuestions: 10,
	}
}

func TestSelector(t *testing.T) {
	yt := NewYouTubeStrategy(&fakeMetadata{}, &fakeTranscripts{}, &fakeQuizzes{})
	hosted := NewHostedStrategy(&fakeTranscriber{}, &fakeQuizzes{}, &fakeTags{})
	selector := NewSelector(yt, hosted)

	t.Run("youtube", func(t *testing.T) {
		s, err := selector.Select(command(quiz.SourceYouTube))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if s != Strategy(yt) {
			t.Error("Expected youtube strategy")
		}
	})

	t.Run("hosted", func(t *testing.T) {
		s, err := selector.Select(command(quiz.SourceHosted))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if s != Strategy(hosted) {
			t.Error("Expected hosted strategy")
		}
	})

	t.Run("unknown kind fails closed", func(t *testing.T) {
		_, err := selector.Select(command(quiz.SourceKind("vimeo")))
		var unsupported *quiz.UnsupportedSourceError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Expected UnsupportedSourceError, got %v", err)
		}
		if unsupported.Kind != "vimeo" {
			t.Errorf("Expected kind vimeo, got %s", unsupported.Kind)
		}
	})
}

func TestYouTubeStrategy(t *testing.T) {
	meta := &youtube.Metadata{
		VideoID:  "abc123",
		Category: "Education",
		Tags:     []string{"go", "programming"},
	}

	t.Run("full extraction", func(t *testing.T) {
		quizzes := &fakeQuizzes{questions: []quiz.Question{{Text: "Q1", Options: []string{"A", "B"}, CorrectIndex: 0}}}
		s := NewYouTubeStrategy(
			&fakeMetadata{meta: meta},
			&fakeTranscripts{text: "the transcript", ok: true},
			quizzes,
		)

		res, err := s.Extract(context.Background(), command(quiz.SourceYouTube))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if res.Source != quiz.SourceYouTube {
			t.Errorf("Expected source youtube, got %s", res.Source)
		}
		if res.VideoID != "abc123" || res.Category != "Education" {
			t.Errorf("Metadata not carried: %+v", res)
		}
		if len(res.Questions) != 1 {
			t.Errorf("Expected 1 question, got %d", len(res.Questions))
		}
		if quizzes.transcript != "the transcript" {
			t.Errorf("Quiz generated from wrong transcript %q", quizzes.transcript)
		}
	})

	t.Run("transcript unavailable degrades gracefully", func(t *testing.T) {
		quizzes := &fakeQuizzes{}
		s := NewYouTubeStrategy(
			&fakeMetadata{meta: meta},
			&fakeTranscripts{ok: false},
			quizzes,
		)

		res, err := s.Extract(context.Background(), command(quiz.SourceYouTube))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if res.Transcript != "" {
			t.Errorf("Expected empty transcript, got %q", res.Transcript)
		}
		if len(res.Questions) != 0 {
			t.Errorf("Expected no questions, got %d", len(res.Questions))
		}
		if quizzes.called {
			t.Error("Quiz generator must not run without a transcript")
		}
		if len(res.Tags) != 2 {
			t.Errorf("Platform tags should still be carried, got %v", res.Tags)
		}
	})

	t.Run("metadata failure is extraction failure", func(t *testing.T) {
		s := NewYouTubeStrategy(
			&fakeMetadata{err: errors.New("quota exceeded")},
			&fakeTranscripts{},
			&fakeQuizzes{},
		)

		_, err := s.Extract(context.Background(), command(quiz.SourceYouTube))
		var provErr *quiz.ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("Expected ProviderError, got %v", err)
		}
		if provErr.Provider != "youtube-metadata" {
			t.Errorf("Expected youtube-metadata provider, got %s", provErr.Provider)
		}
	})
}

func TestHostedStrategy(t *testing.T) {
	t.Run("quiz and tags see the same transcript", func(t *testing.T) {
		quizzes := &fakeQuizzes{questions: []quiz.Question{{Text: "Q1", Options: []string{"A", "B"}, CorrectIndex: 1}}}
		tags := &fakeTags{tags: []string{"go"}}
		s := NewHostedStrategy(
			&fakeTranscriber{tr: transcribe.Transcription{Text: "shared transcript", Artifact: "/tmp/v.mp4"}},
			quizzes,
			tags,
		)

		res, err := s.Extract(context.Background(), command(quiz.SourceHosted))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if quizzes.transcript != "shared transcript" || tags.transcript != "shared transcript" {
			t.Errorf("Expected identical transcript for both generators, got %q and %q",
				quizzes.transcript, tags.transcript)
		}
		if res.Artifact != "/tmp/v.mp4" {
			t.Errorf("Expected artifact carried, got %q", res.Artifact)
		}
		if res.Category != "" {
			t.Errorf("Hosted extraction has no category, got %q", res.Category)
		}
	})

	t.Run("tag failure discards quiz result", func(t *testing.T) {
		s := NewHostedStrategy(
			&fakeTranscriber{tr: transcribe.Transcription{Text: "transcript", Artifact: "/tmp/v.mp4"}},
			&fakeQuizzes{questions: []quiz.Question{{Text: "Q1", Options: []string{"A"}, CorrectIndex: 0}}},
			&fakeTags{err: errors.New("timeout")},
		)

		res, err := s.Extract(context.Background(), command(quiz.SourceHosted))
		var provErr *quiz.ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("Expected ProviderError, got %v", err)
		}
		if provErr.Provider != "tagging" {
			t.Errorf("Expected tagging provider, got %s", provErr.Provider)
		}
		if res == nil || res.Artifact != "/tmp/v.mp4" {
			t.Error("Expected artifact preserved for cleanup on failure")
		}
		if len(res.Questions) != 0 {
			t.Error("Partial quiz result must be discarded")
		}
	})

	t.Run("transcription failure", func(t *testing.T) {
		s := NewHostedStrategy(
			&fakeTranscriber{tr: transcribe.Transcription{Artifact: "/tmp/v.mp4"}, err: errors.New("whisper down")},
			&fakeQuizzes{},
			&fakeTags{},
		)

		res, err := s.Extract(context.Background(), command(quiz.SourceHosted))
		var provErr *quiz.ProviderError
		if !errors.As(err, &provErr) {
			t.Fatalf("Expected ProviderError, got %v", err)
		}
		if provErr.Provider != "transcribe" {
			t.Errorf("Expected transcribe provider, got %s", provErr.Provider)
		}
		if res.Artifact != "/tmp/v.mp4" {
			t.Error("Expected artifact preserved for cleanup")
		}
	})
}
