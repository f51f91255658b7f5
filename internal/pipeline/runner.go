// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/studyloop/studyloop/internal/extractor"
	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
	"github.com/studyloop/studyloop/internal/quiz"
)

// MessageSource yields inbound command messages for a topic.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// EventSink publishes result events.
type EventSink interface {
	PublishEvent(ctx context.Context, event *quiz.QuizGeneratedEvent) error
}

// StrategySelector resolves the extraction strategy for a command.
type StrategySelector interface {
	Select(cmd *quiz.GenerateQuizCommand) (extractor.Strategy, error)
}

// ArtifactCleaner removes local files left behind by an extraction.
type ArtifactCleaner interface {
	Cleanup(path string) error
}

// Runner is the quiz generation consume loop. For every inbound message
// it parses the command, selects a strategy, extracts, and publishes
// exactly one result event, COMPLETED or FAILED. Only a failed publish
// stops the loop; every other error degrades to a FAILED event.
type Runner struct {
	source   MessageSource
	sink     EventSink
	selector StrategySelector
	cleaner  ArtifactCleaner
	logger   zerolog.Logger
}

// NewRunner creates the consume loop. cleaner may be nil when no hosted
// strategy is wired, in which case artifacts are never produced.
func NewRunner(source MessageSource, sink EventSink, selector StrategySelector, cleaner ArtifactCleaner) *Runner {
	return &Runner{
		source:   source,
		sink:     sink,
		selector: selector,
		cleaner:  cleaner,
		logger:   logging.With().Str("component", "pipeline").Logger(),
	}
}

// Run consumes the command topic until context cancellation or a
// publish failure. Messages are acked after their result event was
// accepted by the broker, so a crash between extraction and publish
// redelivers the command rather than losing the result.
func (r *Runner) Run(ctx context.Context) error {
	messages, err := r.source.Subscribe(ctx, TopicGenerate)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicGenerate, err)
	}

	r.logger.Info().Str("topic", TopicGenerate).Msg("Quiz pipeline consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := r.processMessage(ctx, msg); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
		}
	}
}

// processMessage handles one command end to end. The returned error is
// non-nil only when the result event could not be published.
func (r *Runner) processMessage(ctx context.Context, msg *message.Message) error {
	start := time.Now()
	metrics.MessagesConsumed.Inc()

	logger := r.logger.With().Str("message_uuid", msg.UUID).Logger()

	cmd, err := quiz.ParseCommand(msg.Payload)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("parse").Inc()
		logger.Error().Err(err).Msg("Command rejected")
		lessonID, courseID := salvageIdentifiers(msg.Payload)
		return r.publish(ctx, quiz.NewFailedEvent(lessonID, courseID))
	}

	logger = logger.With().
		Str("lesson_id", cmd.LessonID).
		Str("course_id", cmd.CourseID).
		Str("source_type", string(cmd.SourceType)).
		Logger()

	strategy, err := r.selector.Select(cmd)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("select").Inc()
		logger.Error().Err(err).Msg("No strategy for source type")
		return r.publish(ctx, quiz.NewFailedEvent(cmd.LessonID, &cmd.CourseID))
	}

	result, err := strategy.Extract(ctx, cmd)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues("extract").Inc()
		logger.Error().Err(err).Msg("Extraction failed")
		pubErr := r.publish(ctx, quiz.NewFailedEvent(cmd.LessonID, &cmd.CourseID))
		r.cleanup(logger, result)
		return pubErr
	}

	event := quiz.NewCompletedEvent(cmd, result)
	if err := r.publish(ctx, event); err != nil {
		r.cleanup(logger, result)
		return err
	}

	r.cleanup(logger, result)
	logger.Info().
		Int("questions", len(event.Questions)).
		Dur("elapsed", time.Since(start)).
		Msg("Quiz generated")
	return nil
}

func (r *Runner) publish(ctx context.Context, event *quiz.QuizGeneratedEvent) error {
	if err := r.sink.PublishEvent(ctx, event); err != nil {
		return fmt.Errorf("publish %s event for lesson %s: %w", event.Status, event.LessonID, err)
	}
	return nil
}

// cleanup removes the downloaded video artifact, if any. Runs after the
// result event is on the wire so a cleanup failure never costs a result.
func (r *Runner) cleanup(logger zerolog.Logger, result *quiz.ExtractionResult) {
	if result == nil || result.Artifact == "" || r.cleaner == nil {
		return
	}
	if err := r.cleaner.Cleanup(result.Artifact); err != nil {
		metrics.CleanupFailures.Inc()
		logger.Warn().Err(err).Str("artifact", result.Artifact).Msg("Artifact cleanup failed")
	}
}

// salvageIdentifiers best-effort extracts lesson and course IDs from a
// payload that failed full parsing, so the FAILED event still routes to
// the right lesson where possible. CourseID stays nil when absent.
func salvageIdentifiers(payload []byte) (string, *string) {
	var partial struct {
		LessonID string `json:"lesson_id"`
		CourseID string `json:"course_id"`
	}
	if err := json.Unmarshal(payload, &partial); err != nil {
		return quiz.UnknownLessonID, nil
	}

	lessonID := partial.LessonID
	if lessonID == "" {
		lessonID = quiz.UnknownLessonID
	}

	var courseID *string
	if partial.CourseID != "" {
		courseID = &partial.CourseID
	}
	return lessonID, courseID
}
