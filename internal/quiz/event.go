// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package quiz

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Event statuses.
const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// UnknownLessonID is used on the failure path when the command itself could
// not be parsed and no lesson identifier is available.
const UnknownLessonID = "unknown"

// QuizGeneratedEvent is the outbound result of one pipeline iteration.
// Exactly one is published per inbound message, success or failure. On
// failure only the identifiers and status are populated; CourseID is nil
// when the command could not even be parsed.
type QuizGeneratedEvent struct {
	LessonID   string     `json:"lesson_id"`
	CourseID   *string    `json:"course_id"`
	Status     string     `json:"status"`
	Transcript string     `json:"transcript,omitempty"`
	Questions  []Question `json:"quiz_questions,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// NewCompletedEvent builds the success event for a command and its
// extraction result.
func NewCompletedEvent(cmd *GenerateQuizCommand, res *ExtractionResult) *QuizGeneratedEvent {
	courseID := cmd.CourseID
	return &QuizGeneratedEvent{
		LessonID:   cmd.LessonID,
		CourseID:   &courseID,
		Status:     StatusCompleted,
		Transcript: res.Transcript,
		Questions:  res.Questions,
		Tags:       res.Tags,
	}
}

// NewFailedEvent builds the failure event. courseID may be nil when the
// inbound payload never parsed.
func NewFailedEvent(lessonID string, courseID *string) *QuizGeneratedEvent {
	if lessonID == "" {
		lessonID = UnknownLessonID
	}
	return &QuizGeneratedEvent{
		LessonID: lessonID,
		CourseID: courseID,
		Status:   StatusFailed,
	}
}

// Validate checks the invariants the publisher relies on.
func (e *QuizGeneratedEvent) Validate() error {
	if e.LessonID == "" {
		return fmt.Errorf("event missing lesson_id")
	}
	if e.Status != StatusCompleted && e.Status != StatusFailed {
		return fmt.Errorf("event status %q is not %s or %s", e.Status, StatusCompleted, StatusFailed)
	}
	return nil
}

// PartitionKey returns the broker partition key bytes for the event,
// "{lesson_id}_{course_id}" with an empty course when absent. All events for
// one lesson+course land on the same partition.
func (e *QuizGeneratedEvent) PartitionKey() []byte {
	courseID := ""
	if e.CourseID != nil {
		courseID = *e.CourseID
	}
	return PartitionKey(e.LessonID, courseID)
}

// PartitionKey returns the UTF-8 bytes of "{lessonID}_{courseID}".
func PartitionKey(lessonID, courseID string) []byte {
	return []byte(lessonID + "_" + courseID)
}

// MarshalEvent serializes an event after validating it.
func MarshalEvent(e *QuizGeneratedEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalEvent deserializes an event.
func UnmarshalEvent(data []byte) (*QuizGeneratedEvent, error) {
	var e QuizGeneratedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &e, nil
}
