// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/studyloop/studyloop/internal/logging"
	"github.com/studyloop/studyloop/internal/metrics"
)

// MessageStore is the persistence surface the handlers need.
type MessageStore interface {
	GetOrCreateSession(ctx context.Context, userID string, sessionID *uuid.UUID, sessionData datatypes.JSON) (*ChatSession, error)
	CreateMessage(ctx context.Context, sessionID uuid.UUID, messageType, content string, messageData datatypes.JSON) (*ChatMessage, error)
	SessionMessages(ctx context.Context, sessionID uuid.UUID, userID string, limit, offset int) ([]ChatMessage, error)
	UserMessages(ctx context.Context, userID string, limit, offset int) ([]ChatMessage, error)
	UserSessions(ctx context.Context, userID string, limit, offset int) ([]ChatSession, error)
	MessageCount(ctx context.Context, sessionID uuid.UUID) (int64, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID) error
}

// ReplyGenerator produces assistant replies.
type ReplyGenerator interface {
	Reply(ctx context.Context, userMessage string, history []HistoryPair) (string, error)
}

// Handlers serves the chat HTTP API.
type Handlers struct {
	store     MessageStore
	responder ReplyGenerator
	logger    zerolog.Logger
}

// NewHandlers creates the chat HTTP handlers.
func NewHandlers(store MessageStore, responder ReplyGenerator) *Handlers {
	return &Handlers{
		store:     store,
		responder: responder,
		logger:    logging.With().Str("component", "chat-api").Logger(),
	}
}

// Register mounts the chat routes on a chi router.
func (h *Handlers) Register(r chi.Router) {
	r.Post("/chat/send", h.Send)
	r.Post("/chat/messages", h.Messages)
	r.Post("/chat/sessions", h.Sessions)
}

const maxMessageLength = 5000

type sendRequest struct {
	Message     string         `json:"message"`
	UserID      string         `json:"user_id"`
	SessionID   *uuid.UUID     `json:"session_id,omitempty"`
	SessionData datatypes.JSON `json:"session_data,omitempty"`
}

type sendResponse struct {
	MessageID     uuid.UUID `json:"message_id"`
	SessionID     uuid.UUID `json:"session_id"`
	Response      string    `json:"response"`
	UserMessageID uuid.UUID `json:"user_message_id"`
}

// Send persists a user message, generates an assistant reply over the
// recent history, persists the reply, and returns both ids.
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, "send", http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" || len(req.Message) > maxMessageLength {
		h.error(w, "send", http.StatusBadRequest, "message and user_id are required, message at most 5000 characters")
		return
	}

	ctx := r.Context()

	session, err := h.store.GetOrCreateSession(ctx, req.UserID, req.SessionID, req.SessionData)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Session lookup failed")
		h.error(w, "send", http.StatusInternalServerError, "failed to process message")
		return
	}

	recent, err := h.store.SessionMessages(ctx, session.ID, req.UserID, 10, 0)
	if err != nil {
		h.logger.Error().Err(err).Msg("History load failed")
		h.error(w, "send", http.StatusInternalServerError, "failed to process message")
		return
	}
	history := HistoryPairs(recent)

	userMsg, err := h.store.CreateMessage(ctx, session.ID, RoleUser, req.Message,
		datatypes.JSON([]byte(`{"intent":"user_message"}`)))
	if err != nil {
		h.logger.Error().Err(err).Msg("Persist user message failed")
		h.error(w, "send", http.StatusInternalServerError, "failed to process message")
		return
	}

	reply, err := h.responder.Reply(ctx, req.Message, history)
	if err != nil {
		h.logger.Error().Err(err).Msg("Responder failed")
		h.error(w, "send", http.StatusInternalServerError, "failed to generate response")
		return
	}

	assistantMsg, err := h.store.CreateMessage(ctx, session.ID, RoleAssistant, reply, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Persist assistant message failed")
		h.error(w, "send", http.StatusInternalServerError, "failed to process message")
		return
	}

	if err := h.store.TouchSession(ctx, session.ID); err != nil {
		h.logger.Warn().Err(err).Msg("Session touch failed")
	}

	h.respond(w, "send", http.StatusOK, sendResponse{
		MessageID:     assistantMsg.ID,
		SessionID:     session.ID,
		Response:      reply,
		UserMessageID: userMsg.ID,
	})
}

type messagesRequest struct {
	UserID    string     `json:"user_id"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// Messages lists messages for a session, or all of a user's messages
// when no session is given.
func (h *Handlers) Messages(w http.ResponseWriter, r *http.Request) {
	var req messagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, "messages", http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.error(w, "messages", http.StatusBadRequest, "user_id is required")
		return
	}

	var (
		messages []ChatMessage
		err      error
	)
	if req.SessionID != nil {
		messages, err = h.store.SessionMessages(r.Context(), *req.SessionID, req.UserID, req.Limit, req.Offset)
	} else {
		messages, err = h.store.UserMessages(r.Context(), req.UserID, req.Limit, req.Offset)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Message listing failed")
		h.error(w, "messages", http.StatusInternalServerError, "failed to get messages")
		return
	}
	if messages == nil {
		messages = []ChatMessage{}
	}

	h.respond(w, "messages", http.StatusOK, messages)
}

type sessionsRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type sessionResponse struct {
	ID           uuid.UUID      `json:"id"`
	UserID       string         `json:"user_id"`
	SessionName  string         `json:"session_name"`
	MessageCount int64          `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	SessionData  datatypes.JSON `json:"session_data,omitempty"`
}

// Sessions lists a user's sessions with message counts, most recently
// active first.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	var req sessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, "sessions", http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		h.error(w, "sessions", http.StatusBadRequest, "user_id is required")
		return
	}

	sessions, err := h.store.UserSessions(r.Context(), req.UserID, req.Limit, req.Offset)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Session listing failed")
		h.error(w, "sessions", http.StatusInternalServerError, "failed to get sessions")
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		count, err := h.store.MessageCount(r.Context(), s.ID)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", s.ID.String()).Msg("Message count failed")
			h.error(w, "sessions", http.StatusInternalServerError, "failed to get sessions")
			return
		}
		out = append(out, sessionResponse{
			ID:           s.ID,
			UserID:       s.UserID,
			SessionName:  s.SessionName,
			MessageCount: count,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
			SessionData:  s.SessionData,
		})
	}

	h.respond(w, "sessions", http.StatusOK, out)
}

func (h *Handlers) respond(w http.ResponseWriter, endpoint string, status int, body interface{}) {
	metrics.ChatRequests.WithLabelValues(endpoint, "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(body)
}

func (h *Handlers) error(w http.ResponseWriter, endpoint string, status int, msg string) {
	metrics.ChatRequests.WithLabelValues(endpoint, "error").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
