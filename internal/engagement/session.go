package engagement

import (
	"sync"
	"sync/atomic"
)

// Session carries the "already prompted" flag for one signed-in user.
// It lives only in process memory.
type Session struct {
	notified atomic.Bool
}

func (s *Session) Notified() bool {
	return s.notified.Load()
}

// claim sets the flag and reports whether this call was the one that
// set it.
func (s *Session) claim() bool {
	return s.notified.CompareAndSwap(false, true)
}

func (s *Session) Reset() {
	s.notified.Store(false)
}

// Sessions is the per-user registry owned by the host process. A process
// restart starts every user with a fresh session.
type Sessions struct {
	mu     sync.Mutex
	byUser map[int64]*Session
}

func NewSessions() *Sessions {
	return &Sessions{byUser: map[int64]*Session{}}
}

func (s *Sessions) Get(userID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byUser[userID]
	if !ok {
		sess = &Session{}
		s.byUser[userID] = sess
	}
	return sess
}

// End drops the user's session, as on logout.
func (s *Sessions) End(userID int64) {
	s.mu.Lock()
	sess := s.byUser[userID]
	delete(s.byUser, userID)
	s.mu.Unlock()
	if sess != nil {
		sess.Reset()
	}
}
