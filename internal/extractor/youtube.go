// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package extractor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
	"github.com/studyloop/studyloop/internal/quiz"
)

// YouTubeStrategy handles videos whose tags and category already exist on
// the platform, so only transcript retrieval and quiz generation remain.
type YouTubeStrategy struct {
	metadata    MetadataProvider
	transcripts TranscriptFetcher
	quizzes     QuizGenerator
	logger      zerolog.Logger
}

// NewYouTubeStrategy creates the youtube-source strategy.
func NewYouTubeStrategy(metadata MetadataProvider, transcripts TranscriptFetcher, quizzes QuizGenerator) *YouTubeStrategy {
	return &YouTubeStrategy{
		metadata:    metadata,
		transcripts: transcripts,
		quizzes:     quizzes,
		logger:      logging.With().Str("component", "extractor").Str("source", "youtube").Logger(),
	}
}

// Extract resolves platform metadata, fetches the caption track, and
// generates a quiz when a transcript exists. An unavailable transcript
// degrades to an empty transcript and empty quiz rather than failing;
// metadata lookup failures are extraction failures.
func (s *YouTubeStrategy) Extract(ctx context.Context, cmd *quiz.GenerateQuizCommand) (*quiz.ExtractionResult, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.WithLabelValues(string(quiz.SourceYouTube)).Observe(time.Since(start).Seconds())
	}()

	meta, err := s.metadata.Lookup(ctx, cmd.VideoURL)
	if err != nil {
		return nil, &quiz.ProviderError{Provider: "youtube-metadata", Err: err}
	}

	transcript, ok, err := s.transcripts.Fetch(ctx, meta.VideoID, cmd.Language)
	if err != nil {
		return nil, &quiz.ProviderError{Provider: "youtube-transcript", Err: err}
	}
	if !ok {
		s.logger.Info().Str("video_id", meta.VideoID).Msg("Transcript unavailable, continuing without quiz")
	}

	var questions []quiz.Question
	if ok && transcript != "" {
		questions, err = s.quizzes.Generate(ctx, transcript, cmd)
		if err != nil {
			return nil, &quiz.ProviderError{Provider: "quizgen", Err: err}
		}
	}

	return &quiz.ExtractionResult{
		Source:     quiz.SourceYouTube,
		VideoID:    meta.VideoID,
		Category:   meta.Category,
		Tags:       meta.Tags,
		Questions:  questions,
		Transcript: transcript,
	}, nil
}
