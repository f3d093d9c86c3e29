package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"relay/internal/domain"
)

// Recorder persists context entries and dispatch results. Write failures are
// absorbed: the in-memory context stays authoritative.
type Recorder interface {
	SaveEntry(ctx context.Context, sessionID string, entry domain.ContextEntry) error
	SaveDispatch(ctx context.Context, sessionID string, result domain.DispatchResult) error
}

// Session pairs a session's context with the lock that serializes its
// dispatch cycles. The dispatcher holds the lock for one full cycle,
// including handler execution, so a session never has two invocations in
// flight.
type Session struct {
	ID      string
	Mu      sync.Mutex
	Context *Context
}

// Service owns per-session contexts. Sessions are created on demand and
// share nothing with each other.
type Service struct {
	historyBound int
	recorder     Recorder
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(historyBound int, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{
		historyBound: historyBound,
		recorder:     recorder,
		logger:       logger,
		sessions:     make(map[string]*Session),
	}
}

func (s *Service) Session(sessionID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{ID: sessionID, Context: NewContext(s.historyBound)}
		s.sessions[sessionID] = sess
	}
	return sess
}

// Append records an entry in the session context and, when a recorder is
// configured, in durable storage.
func (s *Service) Append(ctx context.Context, sess *Session, role domain.Role, content string, payload json.RawMessage) domain.ContextEntry {
	entry := sess.Context.Append(role, content, payload)
	if s.recorder != nil {
		if err := s.recorder.SaveEntry(ctx, sess.ID, entry); err != nil {
			s.logger.Warn("persist context entry failed", "session_id", sess.ID, "error", err)
		}
	}
	return entry
}

// AppendDispatch appends a dispatch result to the context as a system entry
// carrying the structured result as payload.
func (s *Service) AppendDispatch(ctx context.Context, sess *Session, result domain.DispatchResult) domain.ContextEntry {
	payload, err := json.Marshal(result)
	if err != nil {
		payload = nil
	}
	content := fmt.Sprintf("dispatch %s ok=%t", result.Capability, result.Success)
	entry := s.Append(ctx, sess, domain.RoleSystem, content, payload)
	if s.recorder != nil {
		if err := s.recorder.SaveDispatch(ctx, sess.ID, result); err != nil {
			s.logger.Warn("persist dispatch result failed", "session_id", sess.ID, "error", err)
		}
	}
	return entry
}

// Reset clears the session's history and scratch memory.
func (s *Service) Reset(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.Mu.Lock()
	defer sess.Mu.Unlock()
	sess.Context.Reset()
}
