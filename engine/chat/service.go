package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/engine/document"
	"github.com/lexiscope/lexiscope/engine/infra/cache"
	"github.com/lexiscope/lexiscope/engine/knowledge"
	"github.com/lexiscope/lexiscope/engine/llm"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const (
	// Session cache bounds.
	SessionCacheCapacity = 100
	SessionCacheKeep     = 50

	// HistoryMessages is how many recent turns ground each reply.
	HistoryMessages = 5

	// ContextChars bounds retrieved grounding context.
	ContextChars = 2000

	// FallbackChars bounds the document-cache fallback when retrieval
	// yields nothing.
	FallbackChars = 1000
)

const systemPrompt = `You are a legal policy assistant. Answer questions about the user's
document using the provided context and conversation history. When the
context does not cover the question, say so rather than guessing.`

// Generator is the LLM surface chat needs.
type Generator interface {
	Generate(ctx context.Context, prompt, apiKey string) llm.Completion
}

// Profile optionally tailors the assistant's framing to the reader.
type Profile struct {
	Sector       string `json:"sector,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (p Profile) empty() bool {
	return p.Sector == "" && p.Jurisdiction == "" && p.Role == ""
}

// Reply is one assistant turn.
type Reply struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Grounded  bool   `json:"grounded"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// session entries in the cache are immutable snapshots. Converse works on
// a private copy and replaces the entry wholesale, so concurrent readers
// of the same session never observe a partial write.
type session struct {
	documentID string
	messages   []Message
}

func (s *session) clone() *session {
	cp := &session{documentID: s.documentID}
	if len(s.messages) > 0 {
		cp.messages = make([]Message, len(s.messages))
		copy(cp.messages, s.messages)
	}
	return cp
}

// Service answers follow-up questions, grounding each turn in retrieved
// context with a document-cache fallback. Persistence failures are logged
// only; the conversation continues from the in-process cache.
type Service struct {
	generator Generator
	index     *knowledge.Index
	docs      *document.Service
	store     Store
	sessions  *cache.Cache[string, *session]
	apiKey    string
}

func NewService(generator Generator, index *knowledge.Index, docs *document.Service, store Store, apiKey string) *Service {
	return &Service{
		generator: generator,
		index:     index,
		docs:      docs,
		store:     store,
		sessions:  cache.New[string, *session](SessionCacheCapacity, SessionCacheKeep),
		apiKey:    apiKey,
	}
}

// Converse handles one user turn. A blank session id starts a new session.
func (s *Service) Converse(ctx context.Context, sessionID, documentID, message string, profile Profile) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, core.NewError(errors.New("message is empty"), core.ErrCodeInvalidInput, nil)
	}
	log := logger.FromContext(ctx)
	if sessionID == "" {
		sessionID = core.NewSessionID()
	}
	sess := s.loadSession(ctx, sessionID, documentID)

	grounding := s.grounding(ctx, message, sess.documentID)
	prompt := buildPrompt(profile, grounding, sess.messages, message)
	comp := s.generator.Generate(ctx, prompt, s.apiKey)
	if comp.Degraded {
		log.Warn("chat completion degraded", "session_id", sessionID, "error", comp.Err)
	}

	now := time.Now()
	sess.messages = append(sess.messages,
		Message{Role: RoleUser, Content: message, CreatedAt: now},
		Message{Role: RoleAssistant, Content: comp.Text, CreatedAt: now},
	)
	s.sessions.Set(sessionID, sess)
	s.persist(ctx, sessionID, sess.documentID, message, comp.Text)

	return &Reply{
		SessionID: sessionID,
		Answer:    comp.Text,
		Grounded:  grounding != "",
		Degraded:  comp.Degraded,
	}, nil
}

// SessionCount reports how many sessions the cache currently holds.
func (s *Service) SessionCount() int {
	return s.sessions.Len()
}

// History returns a session's messages from the cache, falling back to
// the store.
func (s *Service) History(ctx context.Context, sessionID string) ([]Message, error) {
	if sess, ok := s.sessions.Get(sessionID); ok {
		out := make([]Message, len(sess.messages))
		copy(out, sess.messages)
		return out, nil
	}
	if s.store == nil {
		return nil, core.NewError(errors.New("session not found"), core.ErrCodeNotFound,
			map[string]any{"session_id": sessionID})
	}
	messages, err := s.store.History(ctx, sessionID, 0)
	if err != nil {
		return nil, core.NewError(err, core.ErrCodePersistence, map[string]any{"session_id": sessionID})
	}
	if len(messages) == 0 {
		return nil, core.NewError(errors.New("session not found"), core.ErrCodeNotFound,
			map[string]any{"session_id": sessionID})
	}
	return messages, nil
}

// Delete removes a session from the cache and the store.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	s.sessions.Delete(sessionID)
	if s.store == nil {
		return nil
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return core.NewError(err, core.ErrCodePersistence, map[string]any{"session_id": sessionID})
	}
	return nil
}

// loadSession returns a private copy of the session, never the cached
// snapshot itself.
func (s *Service) loadSession(ctx context.Context, sessionID, documentID string) *session {
	if sess, ok := s.sessions.Get(sessionID); ok {
		cp := sess.clone()
		if documentID != "" {
			cp.documentID = documentID
		}
		return cp
	}
	sess := &session{documentID: documentID}
	if s.store != nil {
		if messages, err := s.store.History(ctx, sessionID, HistoryMessages); err == nil {
			sess.messages = messages
		} else {
			logger.FromContext(ctx).Warn("loading chat history failed",
				"session_id", sessionID, "error", err)
		}
	}
	return sess
}

// grounding retrieves document context for the question, falling back to
// the head of the cached document when retrieval yields nothing.
func (s *Service) grounding(ctx context.Context, message, documentID string) string {
	if s.index != nil {
		if passage := s.index.Context(ctx, message, ContextChars); passage != "" {
			return passage
		}
	}
	if documentID != "" && s.docs != nil {
		return s.docs.CachedContent(documentID, FallbackChars)
	}
	return ""
}

func (s *Service) persist(ctx context.Context, sessionID, documentID, question, answer string) {
	if s.store == nil {
		return
	}
	log := logger.FromContext(ctx)
	if err := s.store.SaveMessage(ctx, sessionID, documentID, RoleUser, question); err != nil {
		log.Warn("persisting user message failed", "session_id", sessionID, "error", err)
	}
	if err := s.store.SaveMessage(ctx, sessionID, documentID, RoleAssistant, answer); err != nil {
		log.Warn("persisting assistant message failed", "session_id", sessionID, "error", err)
	}
}

func buildPrompt(profile Profile, grounding string, history []Message, message string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	if !profile.empty() {
		b.WriteString("\n\nREADER:")
		if profile.Role != "" {
			b.WriteString(" role=" + profile.Role)
		}
		if profile.Sector != "" {
			b.WriteString(" sector=" + profile.Sector)
		}
		if profile.Jurisdiction != "" {
			b.WriteString(" jurisdiction=" + profile.Jurisdiction)
		}
	}
	if grounding != "" {
		b.WriteString("\n\nDOCUMENT CONTEXT:\n")
		b.WriteString(grounding)
	}
	if len(history) > 0 {
		start := len(history) - HistoryMessages
		if start < 0 {
			start = 0
		}
		b.WriteString("\n\nCONVERSATION:\n")
		for _, m := range history[start:] {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	b.WriteString("\n\nuser: ")
	b.WriteString(message)
	b.WriteString("\nassistant:")
	return b.String()
}
