// Studyloop - Lesson Quiz Generation and Chat Services
// Copyright 2026 Studyloop Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/studyloop/studyloop

package chat

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type fakeStore struct {
	sessions map[uuid.UUID]*ChatSession
	messages []ChatMessage
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]*ChatSession)}
}

func (f *fakeStore) GetOrCreateSession(_ context.Context, userID string, sessionID *uuid.UUID, sessionData datatypes.JSON) (*ChatSession, error) {
	if sessionID != nil {
		if s, ok := f.sessions[*sessionID]; ok && s.UserID == userID {
			return s, nil
		}
	}
	s := &ChatSession{ID: uuid.New(), UserID: userID, SessionName: "Chat", SessionData: sessionData}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, sessionID uuid.UUID, messageType, content string, messageData datatypes.JSON) (*ChatMessage, error) {
	msg := ChatMessage{ID: uuid.New(), SessionID: sessionID, MessageType: messageType, Content: content, MessageData: messageData}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeStore) SessionMessages(_ context.Context, sessionID uuid.UUID, userID string, _, _ int) ([]ChatMessage, error) {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	var out []ChatMessage
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UserMessages(_ context.Context, userID string, _, _ int) ([]ChatMessage, error) {
	var out []ChatMessage
	for _, m := range f.messages {
		if s, ok := f.sessions[m.SessionID]; ok && s.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UserSessions(_ context.Context, userID string, _, _ int) ([]ChatSession, error) {
	var out []ChatSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) MessageCount(_ context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	for _, m := range f.messages {
		if m.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) TouchSession(_ context.Context, _ uuid.UUID) error { return nil }

type fakeResponder struct {
	reply   string
	history []HistoryPair
}

func (f *fakeResponder) Reply(_ context.Context, _ string, history []HistoryPair) (string, error) {
	f.history = history
	return f.reply, nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSend(t *testing.T) {
	t.Run("creates session and persists both messages", func(t *testing.T) {
		store := newFakeStore()
		responder := &fakeResponder{reply: "an answer"}
		h := NewHandlers(store, responder)

		rec := postJSON(t, h.Send, map[string]interface{}{
			"message": "what is an interface?",
			"user_id": "user-1",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp sendResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Decode response: %v", err)
		}
		if resp.Response != "an answer" {
			t.Errorf("Expected reply in response, got %q", resp.Response)
		}
		if len(store.messages) != 2 {
			t.Fatalf("Expected 2 persisted messages, got %d", len(store.messages))
		}
		if store.messages[0].MessageType != RoleUser || store.messages[1].MessageType != RoleAssistant {
			t.Errorf("Messages persisted in wrong roles: %s, %s",
				store.messages[0].MessageType, store.messages[1].MessageType)
		}
		if resp.UserMessageID != store.messages[0].ID || resp.MessageID != store.messages[1].ID {
			t.Error("Response ids do not match persisted messages")
		}
	})

	t.Run("feeds prior exchanges to the responder", func(t *testing.T) {
		store := newFakeStore()
		responder := &fakeResponder{reply: "second answer"}
		h := NewHandlers(store, responder)

		rec := postJSON(t, h.Send, map[string]interface{}{"message": "first", "user_id": "user-1"})
		var first sendResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
			t.Fatalf("Decode response: %v", err)
		}

		postJSON(t, h.Send, map[string]interface{}{
			"message":    "second",
			"user_id":    "user-1",
			"session_id": first.SessionID,
		})

		if len(responder.history) != 1 {
			t.Fatalf("Expected 1 history pair, got %d", len(responder.history))
		}
		if responder.history[0].User != "first" || responder.history[0].Assistant != "second answer" {
			t.Errorf("Wrong history pair: %+v", responder.history[0])
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		h := NewHandlers(newFakeStore(), &fakeResponder{})
		rec := postJSON(t, h.Send, map[string]interface{}{"message": "hi"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for missing user_id, got %d", rec.Code)
		}
	})
}

func TestMessages(t *testing.T) {
	store := newFakeStore()
	h := NewHandlers(store, &fakeResponder{reply: "ok"})

	rec := postJSON(t, h.Send, map[string]interface{}{"message": "hello", "user_id": "user-1"})
	var sent sendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sent); err != nil {
		t.Fatalf("Decode response: %v", err)
	}

	t.Run("by session", func(t *testing.T) {
		rec := postJSON(t, h.Messages, map[string]interface{}{
			"user_id":    "user-1",
			"session_id": sent.SessionID,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var messages []ChatMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
			t.Fatalf("Decode response: %v", err)
		}
		if len(messages) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(messages))
		}
	})

	t.Run("foreign session yields empty list", func(t *testing.T) {
		rec := postJSON(t, h.Messages, map[string]interface{}{
			"user_id":    "someone-else",
			"session_id": sent.SessionID,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var messages []ChatMessage
		if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil {
			t.Fatalf("Decode response: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("Expected no messages for foreign user, got %d", len(messages))
		}
	})
}

func TestSessions(t *testing.T) {
	store := newFakeStore()
	h := NewHandlers(store, &fakeResponder{reply: "ok"})

	postJSON(t, h.Send, map[string]interface{}{"message": "hello", "user_id": "user-1"})

	rec := postJSON(t, h.Sessions, map[string]interface{}{"user_id": "user-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var sessions []sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("Decode response: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(sessions))
	}
	if sessions[0].MessageCount != 2 {
		t.Errorf("Expected message_count 2, got %d", sessions[0].MessageCount)
	}
}

func TestHistoryPairs(t *testing.T) {
	msgs := []ChatMessage{
		{MessageType: RoleUser, Content: "q1"},
		{MessageType: RoleAssistant, Content: "a1"},
		{MessageType: RoleUser, Content: "q2"},
		{MessageType: RoleAssistant, Content: "a2"},
		{MessageType: RoleUser, Content: "dangling"},
	}

	pairs := HistoryPairs(msgs)
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].User != "q1" || pairs[0].Assistant != "a1" {
		t.Errorf("Wrong first pair: %+v", pairs[0])
	}
	if pairs[1].User != "q2" || pairs[1].Assistant != "a2" {
		t.Errorf("Wrong second pair: %+v", pairs[1])
	}

	t.Run("misaligned roles are skipped", func(t *testing.T) {
		pairs := HistoryPairs([]ChatMessage{
			{MessageType: RoleAssistant, Content: "a"},
			{MessageType: RoleUser, Content: "q"},
		})
		if len(pairs) != 0 {
			t.Errorf("Expected no pairs from misaligned roles, got %d", len(pairs))
		}
	})
}
