// Package session keeps in-progress intakes in memory and serializes work per user.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fencing-federation/intake-bot/internal/domain"
)

// userLock is a refcounted per-user mutex. Entries are dropped once no
// caller holds or waits on them.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// Store maps user IDs to their in-progress session.
// Sessions are volatile: nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]domain.Session

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]domain.Session),
		locks:    make(map[int64]*userLock),
	}
}

// Get returns a copy of the user's session.
func (s *Store) Get(userID int64) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Put creates or overwrites the session for sess.UserID.
func (s *Store) Put(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// Remove deletes the user's session and reports whether one existed.
func (s *Store) Remove(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[userID]; !ok {
		return false
	}
	delete(s.sessions, userID)
	slog.Debug("Intake session removed", "user_id", userID)
	return true
}

// Len returns the number of sessions in progress.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Expired returns users whose sessions have been idle longer than ttl.
func (s *Store) Expired(ttl time.Duration, now time.Time) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []int64
	for userID, sess := range s.sessions {
		if sess.Idle(now) > ttl {
			expired = append(expired, userID)
		}
	}
	return expired
}

// Lock acquires the user's exclusive lock and returns its release function.
// Work for one user is single-writer; other users are unaffected.
func (s *Store) Lock(userID int64) (unlock func()) {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}
