// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package quiz

import (
	"bytes"
	"reflect"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	courseID := "course-1"
	event := &QuizGeneratedEvent{
		LessonID:   "lesson-1",
		CourseID:   &courseID,
		Status:     StatusCompleted,
		Transcript: "a transcript",
		Questions: []Question{
			{Text: "Q1", Options: []string{"A", "B", "C"}, CorrectIndex: 2},
		},
		Tags: []string{"go", "concurrency"},
	}

	data, err := MarshalEvent(event)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	decoded, err := UnmarshalEvent(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(event, decoded) {
		t.Errorf("Round trip mismatch:\n want %+v\n got  %+v", event, decoded)
	}
}

func TestFailedEvent(t *testing.T) {
	t.Run("unparsed command", func(t *testing.T) {
		event := NewFailedEvent("", nil)
		if event.LessonID != UnknownLessonID {
			t.Errorf("Expected %s, got %s", UnknownLessonID, event.LessonID)
		}
		if event.CourseID != nil {
			t.Errorf("Expected nil course, got %v", *event.CourseID)
		}
		if event.Status != StatusFailed {
			t.Errorf("Expected FAILED, got %s", event.Status)
		}
		if event.Transcript != "" || event.Questions != nil || event.Tags != nil {
			t.Error("Failure event must not carry extraction payload")
		}
	})

	t.Run("optional fields omitted on wire", func(t *testing.T) {
		data, err := MarshalEvent(NewFailedEvent("lesson-1", nil))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		for _, field := range []string{"transcript", "quiz_questions", "tags"} {
			if bytes.Contains(data, []byte(field)) {
				t.Errorf("Expected %s omitted from %s", field, data)
			}
		}
	})
}

func TestEventValidate(t *testing.T) {
	if err := (&QuizGeneratedEvent{LessonID: "l", Status: "PENDING"}).Validate(); err == nil {
		t.Error("Expected error for unknown status")
	}
	if err := (&QuizGeneratedEvent{Status: StatusCompleted}).Validate(); err == nil {
		t.Error("Expected error for missing lesson_id")
	}
}

func TestPartitionKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := PartitionKey("lesson-1", "course-1")
		b := PartitionKey("lesson-1", "course-1")
		if !bytes.Equal(a, b) {
			t.Errorf("Expected identical keys, got %q and %q", a, b)
		}
		if string(a) != "lesson-1_course-1" {
			t.Errorf("Unexpected key %q", a)
		}
	})

	t.Run("absent course id", func(t *testing.T) {
		event := NewFailedEvent("lesson-1", nil)
		if string(event.PartitionKey()) != "lesson-1_" {
			t.Errorf("Unexpected key %q", event.PartitionKey())
		}
	})
}
