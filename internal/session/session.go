// ABOUTME: Chat sessions that each own one ConversationState
// ABOUTME: Registry hands out sessions by id and expires idle ones
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown or expired session ids
var ErrNotFound = errors.New("session not found")

// DefaultTTL is how long an idle session is kept
const DefaultTTL = 30 * time.Minute

// Answerer runs one pipeline pass against a conversation
type Answerer interface {
	Answer(ctx context.Context, history *models.ConversationState, req core.Request) (models.Answer, error)
}

// Session is one user's conversation. Calls to Ask are serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	state    *models.ConversationState
	answerer Answerer
	lastUsed atomic.Int64
	now      func() time.Time
}

// Ask answers req in the context of this session. The user turn and the
// assistant reply are recorded only when the answer succeeds.
func (s *Session) Ask(ctx context.Context, req core.Request) (models.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()
	defer s.touch()
	ans, err := s.answerer.Answer(ctx, s.state, req)
	if err != nil {
		return models.Answer{}, err
	}
	s.state.Append(models.RoleUser, req.Query)
	s.state.Append(models.RoleAssistant, ans.Explanation)
	return ans, nil
}

// History returns a copy of the recorded turns
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Turns()
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

// idleSince is read without s.mu so sweeps never wait on an in-flight Ask
func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Registry tracks live sessions
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	answerer Answerer
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry creates an empty registry; ttl <= 0 means DefaultTTL
func NewRegistry(answerer Answerer, ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		sessions: make(map[string]*Session),
		answerer: answerer,
		ttl:      ttl,
		now:      time.Now,
		logger:   logging.OrNop(logger).Named("sessions"),
	}
}

// Create starts a session with a fresh uuid
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(uuid.NewString())
}

// Get returns a live session
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || r.expired(s) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// GetOrCreate returns the session for id, creating it when absent. An empty
// id mints a new one.
func (r *Registry) GetOrCreate(id string) (*Session, error) {
	if id == "" {
		return r.Create(), nil
	}
	if err := validation.Var("session_id", id, "max=128,printascii"); err != nil {
		return nil, models.NewOpError("session", models.ErrInvalidInput, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && !r.expired(s) {
		return s, nil
	}
	return r.createLocked(id), nil
}

// Delete ends a session
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops expired sessions and reports how many were removed
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if r.expired(s) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debug("expired sessions", zap.Int("removed", removed), zap.Int("remaining", len(r.sessions)))
	}
	return removed
}

// Run sweeps every interval until ctx ends
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) createLocked(id string) *Session {
	s := &Session{
		ID:       id,
		state:    models.NewConversationState(id),
		answerer: r.answerer,
		now:      r.now,
	}
	s.touch()
	r.sessions[id] = s
	r.logger.Debug("created session", zap.String("session_id", id))
	return s
}

func (r *Registry) expired(s *Session) bool {
	return r.now().Sub(s.idleSince()) > r.ttl
}
