// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package quiz

import "fmt"

// ParseError marks a malformed inbound payload. The runner converts it into
// a FAILED event with defaulted identifiers.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse command: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedSourceError marks a command whose source kind has no registered
// extraction strategy. The runner converts it into a FAILED event before any
// provider call is made.
type UnsupportedSourceError struct {
	Kind SourceKind
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported source type: %q", string(e.Kind))
}

// ProviderError marks a collaborator failure during extraction: the provider
// name is logged, never put on the wire.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
