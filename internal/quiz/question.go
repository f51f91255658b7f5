// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package quiz

import "fmt"

// Question is one multiple-choice quiz item.
type Question struct {
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// Validate checks the structural invariant: non-empty text, at least one
// option, and a correct index that addresses an existing option.
func (q *Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("question %q has no options", q.Text)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("question %q correct_index %d out of range [0,%d)",
			q.Text, q.CorrectIndex, len(q.Options))
	}
	return nil
}

// ExtractionResult is the uniform output of one extraction strategy
// invocation. It is never mutated after construction; the pipeline runner
// consumes it immediately to build the outbound event.
type ExtractionResult struct {
	Source     SourceKind `json:"source"`
	VideoID    string     `json:"video_id,omitempty"`
	Category   string     `json:"category,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Questions  []Question `json:"quiz,omitempty"`
	Transcript string     `json:"transcript"`

	// Artifact is the local path of a downloaded video, if the strategy
	// produced one. The runner deletes it after event publication. Not part
	// of the wire format.
	Artifact string `json:"-"`
}
