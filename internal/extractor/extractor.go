// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package extractor implements the per-source extraction strategies that
// turn a quiz command into a transcript, tags, and questions. Dispatch is a
// closed table over the command's source kind; adding a source means adding
// a strategy and a table entry.
package extractor

import (
	"context"

	"github.com/studyloop/studyloop/internal/providers/transcribe"
	"github.com/studyloop/studyloop/internal/providers/youtube"
	"github.com/studyloop/studyloop/internal/quiz"
)

// Strategy produces an ExtractionResult for commands of one source kind.
//
// On failure a strategy may still return a non-nil result carrying only the
// Artifact path of a downloaded video, so the runner can release it after
// the FAILED event is published.
type Strategy interface {
	Extract(ctx context.Context, cmd *quiz.GenerateQuizCommand) (*quiz.ExtractionResult, error)
}

// Collaborator contracts, implemented by the provider adapters. Defined here
// on the consumer side so strategies can be tested with fakes.

// MetadataProvider resolves platform metadata for a video locator.
type MetadataProvider interface {
	Lookup(ctx context.Context, videoURL string) (*youtube.Metadata, error)
}

// TranscriptFetcher retrieves a platform caption track. ok=false with a nil
// error means the transcript is unavailable, which is an expected outcome.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID, language string) (transcript string, ok bool, err error)
}

// Transcriber produces a transcript from a raw video locator.
type Transcriber interface {
	Transcribe(ctx context.Context, videoURL, language string) (transcribe.Transcription, error)
}

// QuizGenerator derives quiz questions from a transcript.
type QuizGenerator interface {
	Generate(ctx context.Context, transcript string, cmd *quiz.GenerateQuizCommand) ([]quiz.Question, error)
}

// TagGenerator derives topic tags from a transcript.
type TagGenerator interface {
	Tags(ctx context.Context, transcript string) ([]string, error)
}

// Selector maps a command's source kind to its strategy. Selection is pure
// and stateless; unknown kinds fail closed with UnsupportedSourceError.
type Selector struct {
	strategies map[quiz.SourceKind]Strategy
}

// NewSelector builds the dispatch table for the known source kinds.
func NewSelector(yt, hosted Strategy) *Selector {
	return &Selector{
		strategies: map[quiz.SourceKind]Strategy{
			quiz.SourceYouTube: yt,
			quiz.SourceHosted:  hosted,
		},
	}
}

// Select returns the strategy for the command's source kind.
func (s *Selector) Select(cmd *quiz.GenerateQuizCommand) (Strategy, error) {
	strategy, ok := s.strategies[cmd.SourceType]
	if !ok || strategy == nil {
		return nil, &quiz.UnsupportedSourceError{Kind: cmd.SourceType}
	}
	return strategy, nil
}
