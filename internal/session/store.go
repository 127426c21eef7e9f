package session

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/shared"
)

// Session is a bearer token together with the profile it belongs to.
type Session struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Persister saves and restores a session across process restarts.
type Persister interface {
	Load() (*Session, error) // Load returns nil, nil when nothing is stored
	Save(Session) error
	Remove() error
}

// Store holds at most one active session.
type Store struct {
	mu        sync.RWMutex
	current   *Session
	persister Persister
	logger    *log.Logger
}

// StoreOpts configures a [Store].
type StoreOpts struct {
	Persister Persister
	Logger    *log.Logger
}

// NewStore creates a Store, restoring a previously persisted session if there is one.
//
// A session that fails to load is discarded with a warning; the store starts empty.
func NewStore(opts StoreOpts) *Store {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	s := &Store{persister: opts.Persister, logger: opts.Logger}
	if s.persister == nil {
		return s
	}

	restored, err := s.persister.Load()
	switch {
	case err != nil:
		s.logger.Warn("discarding unreadable session", "error", err)
		if err := s.persister.Remove(); err != nil {
			s.logger.Warn("failed to remove unreadable session", "error", err)
		}
	case restored != nil && restored.Token != "":
		s.current = restored
	}

	return s
}

// Set replaces the current session with token and user.
//
// The new pair is persisted before it becomes visible; if persisting fails the previous session stays in place.
func (s *Store) Set(token string, user models.User) error {
	if token == "" {
		return fmt.Errorf("%w: session token is empty", shared.ErrInvalidInput)
	}

	next := &Session{Token: token, User: user}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Save(*next); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}
	s.current = next
	return nil
}

// Clear removes the current session. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	s.current = nil

	if s.persister != nil {
		if err := s.persister.Remove(); err != nil {
			s.logger.Warn("failed to remove persisted session", "error", err)
		}
	}
}

// Get returns a snapshot of the current session.
func (s *Store) Get() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Token returns the current bearer token, or "" when there is no session.
func (s *Store) Token() string {
	sess, _ := s.Get()
	return sess.Token
}
