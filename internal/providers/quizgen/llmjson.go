// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package quizgen

import (
	"fmt"
	"strings"
)

// NormalizeModelJSON extracts the JSON object from free text returned by a
// language model. Models are instructed to answer with bare JSON but still
// wrap it in code fences or surround it with prose often enough that strict
// parsing alone is not viable. Normalization is applied ahead of parsing:
//
//  1. strip a leading ```/```json fence and a trailing ``` fence,
//  2. slice from the first '{' to the last '}'.
//
// An empty input or one containing no braced region at all is an error.
func NormalizeModelJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", fmt.Errorf("empty model response")
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSpace(text)
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last <= first {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return text[first : last+1], nil
}
