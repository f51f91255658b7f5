// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package services

import (
	"context"
	"fmt"
)

// PipelineRunner matches the quiz generation consume loop. Run blocks
// until the context is canceled or the loop hits a fatal error such as
// a failed event publish.
type PipelineRunner interface {
	Run(ctx context.Context) error
}

// PipelineService wraps the consume loop as a supervised service. When
// Run returns an error the supervisor restarts the loop under its
// backoff policy; the durable JetStream consumer redelivers anything
// left unacked by the previous incarnation.
type PipelineService struct {
	runner PipelineRunner
	name   string
}

// NewPipelineService creates a pipeline service wrapper.
func NewPipelineService(runner PipelineRunner) *PipelineService {
	return &PipelineService{
		runner: runner,
		name:   "quiz-pipeline",
	}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	if err := s.runner.Run(ctx); err != nil {
		return fmt.Errorf("quiz pipeline stopped: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer so suture can identify the service in logs.
func (s *PipelineService) String() string {
	return s.name
}
