package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-chat/internal/domain"
)

var (
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrSessionForbidden = errors.New("chat session belongs to another participant")
)

// SessionFactory builds an unstarted session for principal.
type SessionFactory func(id string, principal domain.Principal) (*ChatSession, error)

// SessionRegistry owns the mounted chat sessions.
type SessionRegistry struct {
	factory SessionFactory
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*ChatSession
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(factory SessionFactory, logger *zap.Logger) *SessionRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{factory: factory, logger: logger, sessions: make(map[string]*ChatSession)}
}

// Mount creates and starts a session. A failed initial connect is not fatal:
// the session stays mounted while reconnection runs.
func (r *SessionRegistry) Mount(ctx context.Context, principal domain.Principal) (*ChatSession, error) {
	if principal.ParticipantID == "" || !principal.Role.Valid() {
		return nil, domain.ErrMissingSubject
	}
	id := uuid.NewString()
	session, err := r.factory(id, principal)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		r.logger.Warn("session mounted without connection", zap.String("session_id", id), zap.Error(err))
	} else {
		r.logger.Info("session mounted", zap.String("session_id", id), zap.String("participant_id", principal.ParticipantID))
	}
	return session, nil
}

// Get returns the session if principal owns it.
func (r *SessionRegistry) Get(id string, principal domain.Principal) (*ChatSession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.Principal().ParticipantID != principal.ParticipantID {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// Unmount tears the session down and forgets it.
func (r *SessionRegistry) Unmount(id string, principal domain.Principal) error {
	session, err := r.Get(id, principal)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	session.Close()
	return nil
}

// Len returns the number of mounted sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears every session down.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*ChatSession)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
