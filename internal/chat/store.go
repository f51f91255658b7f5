// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store persists chat sessions and messages in Postgres via gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres, enables the uuid extension, and migrates
// the chat tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	if err := db.AutoMigrate(&ChatSession{}, &ChatMessage{}); err != nil {
		return nil, fmt.Errorf("migrate chat tables: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStore wraps an existing gorm connection. Used by tests.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies database connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GetOrCreateSession returns the user's session when sessionID matches
// one they own, otherwise creates a fresh session. sessionData may
// carry a "name" key used as the new session's name.
func (s *Store) GetOrCreateSession(ctx context.Context, userID string, sessionID *uuid.UUID, sessionData datatypes.JSON) (*ChatSession, error) {
	if sessionID != nil {
		var session ChatSession
		err := s.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", *sessionID, userID).
			First(&session).Error
		if err == nil {
			return &session, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("look up session: %w", err)
		}
	}

	session := ChatSession{
		UserID:      userID,
		SessionName: sessionName(sessionData),
		SessionData: sessionData,
	}
	if session.SessionData == nil {
		session.SessionData = datatypes.JSON([]byte(`{}`))
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// CreateMessage appends a message to a session.
func (s *Store) CreateMessage(ctx context.Context, sessionID uuid.UUID, messageType, content string, messageData datatypes.JSON) (*ChatMessage, error) {
	msg := ChatMessage{
		SessionID:   sessionID,
		MessageType: messageType,
		Content:     content,
		MessageData: messageData,
	}
	if msg.MessageData == nil {
		msg.MessageData = datatypes.JSON([]byte(`{}`))
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &msg, nil
}

// SessionMessages lists a session's messages in chronological order,
// returning nothing when the session does not belong to the user.
func (s *Store) SessionMessages(ctx context.Context, sessionID uuid.UUID, userID string, limit, offset int) ([]ChatMessage, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ChatSession{}).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("check session ownership: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	var messages []ChatMessage
	err = s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(normalizeLimit(limit, 50)).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	return messages, nil
}

// UserMessages lists a user's messages across all their sessions,
// newest first.
func (s *Store) UserMessages(ctx context.Context, userID string, limit, offset int) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.db.WithContext(ctx).
		Where("session_id IN (?)",
			s.db.Model(&ChatSession{}).Select("id").Where("user_id = ?", userID)).
		Order("created_at DESC").
		Limit(normalizeLimit(limit, 100)).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list user messages: %w", err)
	}
	return messages, nil
}

// UserSessions lists a user's sessions ordered by recent activity.
func (s *Store) UserSessions(ctx context.Context, userID string, limit, offset int) ([]ChatSession, error) {
	var sessions []ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(normalizeLimit(limit, 20)).
		Offset(offset).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	return sessions, nil
}

// MessageCount returns the number of messages in a session.
func (s *Store) MessageCount(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// TouchSession bumps the session's updated_at to now.
func (s *Store) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Model(&ChatSession{}).
		Where("id = ?", sessionID).
		Update("updated_at", gorm.Expr("now()")).Error
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeleteSession removes a session and its messages when owned by the
// user. Returns false when nothing matched.
func (s *Store) DeleteSession(ctx context.Context, sessionID uuid.UUID, userID string) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&ChatSession{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("session_id = ?", sessionID).Delete(&ChatMessage{}).Error
	})
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return deleted, nil
}

func sessionName(data datatypes.JSON) string {
	const fallback = "Chat"
	if len(data) == 0 {
		return fallback
	}
	var fields struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &fields); err != nil || fields.Name == "" {
		return fallback
	}
	return fields.Name
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 200 {
		return fallback
	}
	return limit
}
