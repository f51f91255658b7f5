// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package extractor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studyloop/studyloop/internal/metrics"
	"github.com/studyloop/studyloop/internal/quiz"
)

// HostedStrategy handles videos with no platform metadata: transcript, tags,
// and quiz are all derived from content.
type HostedStrategy struct {
	transcriber Transcriber
	quizzes     QuizGenerator
	tags        TagGenerator
}

// NewHostedStrategy creates the hosted-source strategy.
func NewHostedStrategy(transcriber Transcriber, quizzes QuizGenerator, tags TagGenerator) *HostedStrategy {
	return &HostedStrategy{
		transcriber: transcriber,
		quizzes:     quizzes,
		tags:        tags,
	}
}

// Extract transcribes the video, then runs quiz and tag generation
// concurrently against the same transcript. Both are pure functions of
// (transcript, command); the first failure cancels the sibling call and
// fails the extraction, discarding any partial result. When extraction
// fails after the download, the returned result carries only the artifact
// path so the runner can still release it.
func (s *HostedStrategy) Extract(ctx context.Context, cmd *quiz.GenerateQuizCommand) (*quiz.ExtractionResult, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.WithLabelValues(string(quiz.SourceHosted)).Observe(time.Since(start).Seconds())
	}()

	tr, err := s.transcriber.Transcribe(ctx, cmd.VideoURL, cmd.Language)
	if err != nil {
		return &quiz.ExtractionResult{Source: quiz.SourceHosted, Artifact: tr.Artifact},
			&quiz.ProviderError{Provider: "transcribe", Err: err}
	}

	var (
		questions []quiz.Question
		tags      []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.quizzes.Generate(gctx, tr.Text, cmd)
		if err != nil {
			return &quiz.ProviderError{Provider: "quizgen", Err: err}
		}
		questions = q
		return nil
	})
	g.Go(func() error {
		t, err := s.tags.Tags(gctx, tr.Text)
		if err != nil {
			return &quiz.ProviderError{Provider: "tagging", Err: err}
		}
		tags = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return &quiz.ExtractionResult{Source: quiz.SourceHosted, Artifact: tr.Artifact}, err
	}

	return &quiz.ExtractionResult{
		Source:     quiz.SourceHosted,
		Tags:       tags,
		Questions:  questions,
		Transcript: tr.Text,
		Artifact:   tr.Artifact,
	}, nil
}
