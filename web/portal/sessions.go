package portal

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dsecure/portal/internal/explorer"
	"github.com/dsecure/portal/internal/identity"
)

// SessionCookie names the cookie holding the explorer session id.
const SessionCookie = "logs_session"

// Factory builds the explorer for a new visit. r carries the caller's token.
type Factory func(r *http.Request, id identity.Identity) *explorer.Explorer

type session struct {
	id       string
	email    string
	token    string
	explorer *explorer.Explorer
	lastSeen time.Time
}

// Sessions keeps one explorer per visit and evicts idle ones.
type Sessions struct {
	mu      sync.Mutex
	byID    map[string]*session
	factory Factory
	idle    time.Duration
	now     func() time.Time
	logger  *slog.Logger

	started  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSessions creates a registry. idle <= 0 disables eviction.
func NewSessions(factory Factory, idle time.Duration, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		byID:    make(map[string]*session),
		factory: factory,
		idle:    idle,
		now:     time.Now,
		logger:  logger.With("component", "sessions"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Resolve returns the caller's explorer, creating a new session when the
// cookie is missing, unknown, or belongs to another identity or token. The
// second result is true for a new session, which still needs its first load.
func (s *Sessions) Resolve(w http.ResponseWriter, r *http.Request, id identity.Identity) (*explorer.Explorer, string, bool) {
	token := RequestToken(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			if sess, ok := s.byID[c.Value]; ok && sess.email == id.Email && sess.token == token {
				sess.lastSeen = s.now()
				return sess.explorer, sess.id, false
			}
			delete(s.byID, c.Value)
		}
	}

	sess := &session{
		id:       uuid.NewString(),
		email:    id.Email,
		token:    token,
		explorer: s.factory(r, id),
		lastSeen: s.now(),
	}
	s.byID[sess.id] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.id,
		Path:     "/admin/logs",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	s.logger.Debug("explorer session created", "session_id", sess.id, "user_email", id.Email)
	return sess.explorer, sess.id, true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Evict removes sessions idle for longer than the idle timeout and returns
// how many were removed.
func (s *Sessions) Evict() int {
	if s.idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.byID {
		if sess.lastSeen.Before(cutoff) {
			delete(s.byID, id)
			n++
		}
	}
	if n > 0 {
		s.logger.Info("evicted idle explorer sessions", "count", n, "remaining", len(s.byID))
	}
	return n
}

// Start runs the janitor until Stop is called.
func (s *Sessions) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Evict()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the janitor started by Start and waits for it.
func (s *Sessions) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
	})
}

// RequestToken returns the bearer token the caller presented, if any.
func RequestToken(r *http.Request) string {
	if c, err := r.Cookie(identity.TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get("Authorization")
}
