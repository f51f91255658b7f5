// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package quiz defines the message envelopes exchanged over the broker:
// the inbound GenerateQuizCommand, the outbound QuizGeneratedEvent, and the
// Question/ExtractionResult records that travel between them.
package quiz

import (
	"fmt"
	"math/rand"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// SourceKind identifies which extraction strategy handles a video.
type SourceKind string

// Known video sources. Anything else fails strategy selection.
const (
	SourceYouTube SourceKind = "youtube"
	SourceHosted  SourceKind = "hosted"
)

// Default generation parameters applied when the command omits them.
const (
	DefaultLanguage   = "en"
	DefaultDifficulty = "medium"

	minDefaultQuestions = 8
	maxDefaultQuestions = 12
)

// DefaultQuestionTypes returns the question types accepted when the command
// does not specify any.
func DefaultQuestionTypes() []string {
	return []string{"multiple_choice", "true_false"}
}

// GenerateQuizCommand is the inbound instruction to generate a quiz for a
// lesson's video. It is constructed once per inbound message by ParseCommand
// and read-only afterwards.
type GenerateQuizCommand struct {
	LessonID      string     `json:"lesson_id" validate:"required"`
	CourseID      string     `json:"course_id" validate:"required"`
	LessonName    string     `json:"lesson_name" validate:"required"`
	VideoURL      string     `json:"video_url" validate:"required,url"`
	SourceType    SourceKind `json:"source_type" validate:"required"`
	Language      string     `json:"language"`
	NumQuestions  int        `json:"num_questions"`
	Difficulty    string     `json:"difficulty"`
	QuestionTypes []string   `json:"question_type"`
}

var commandValidator = validator.New()

// ParseCommand deserializes and validates an inbound payload.
// Missing optional fields receive defaults; the question count defaults to a
// random value in [8,12], matching the upstream contract. A malformed payload
// or missing required field returns a *ParseError.
func ParseCommand(payload []byte) (*GenerateQuizCommand, error) {
	var cmd GenerateQuizCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("decode command: %w", err)}
	}

	if err := commandValidator.Struct(&cmd); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("validate command: %w", err)}
	}

	// The url validator tag accepts relative URLs on some inputs; require an
	// absolute locator with a scheme and host.
	u, err := url.Parse(cmd.VideoURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, &ParseError{Err: fmt.Errorf("video_url %q is not an absolute URL", cmd.VideoURL)}
	}

	cmd.applyDefaults()
	return &cmd, nil
}

func (c *GenerateQuizCommand) applyDefaults() {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.Difficulty == "" {
		c.Difficulty = DefaultDifficulty
	}
	if c.NumQuestions <= 0 {
		c.NumQuestions = minDefaultQuestions + rand.Intn(maxDefaultQuestions-minDefaultQuestions+1)
	}
	if len(c.QuestionTypes) == 0 {
		c.QuestionTypes = DefaultQuestionTypes()
	}
}
