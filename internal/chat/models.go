// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

// Package chat implements the persistent chat service: sessions and
// messages in Postgres, with assistant replies generated by an LLM
// responder over a rolling history window.
package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession groups messages for one user conversation. UserID is an
// opaque identifier owned by an external service.
type ChatSession struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID      string         `gorm:"type:varchar(100);not null;index" json:"user_id"`
	SessionName string         `gorm:"type:varchar(255);default:'Chat'" json:"session_name"`
	SessionData datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"session_data,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatMessage is one user or assistant message within a session.
type ChatMessage struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"session_id"`
	MessageType string         `gorm:"type:varchar(20);not null" json:"message_type"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	MessageData datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"message_data,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (ChatMessage) TableName() string { return "chat_messages" }

// HistoryPair is one user/assistant exchange fed back to the responder
// as conversation context.
type HistoryPair struct {
	User      string
	Assistant string
}

// HistoryPairs folds an ordered message list into user/assistant
// exchanges. Messages that do not line up as a user message followed by
// an assistant message are skipped.
func HistoryPairs(messages []ChatMessage) []HistoryPair {
	var pairs []HistoryPair
	for i := 0; i+1 < len(messages); i += 2 {
		if messages[i].MessageType == RoleUser && messages[i+1].MessageType == RoleAssistant {
			pairs = append(pairs, HistoryPair{
				User:      messages[i].Content,
				Assistant: messages[i+1].Content,
			})
		}
	}
	return pairs
}
