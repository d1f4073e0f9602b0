package internal

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rtzll/insight/internal/agent"
	"github.com/rtzll/insight/internal/index"
	"github.com/rtzll/insight/internal/model"
	"github.com/rtzll/insight/pkg/logx"
)

// DefaultSessionID is used when a caller does not name a session.
const DefaultSessionID = "default"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidSessionID reports whether id can name a session.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Session holds the retrieval tools of the last analyzed video. Its lock
// serializes every operation on the session, removal included.
type Session struct {
	ID string

	mu       sync.Mutex
	removed  bool
	video    *index.VideoTool
	papers   PaperSearcher
	analysis *model.AnalysisResult

	// guarded by the store lock
	lastUsed time.Time
}

// Lock acquires the session for one operation.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// Tools returns the session's tools for the chat router. Callers hold the lock.
func (s *Session) Tools() agent.Tools {
	t := agent.Tools{}
	if s.video != nil {
		t.Video = s.video
		t.VideoID = s.video.VideoID
	}
	if s.papers != nil {
		t.Papers = s.papers
	}
	return t
}

// PaperTool returns the paper tool, nil before the first analysis. Callers
// hold the lock.
func (s *Session) PaperTool() PaperSearcher {
	return s.papers
}

// Analysis returns the last successful analysis. Callers hold the lock.
func (s *Session) Analysis() (model.AnalysisResult, bool) {
	if s.analysis == nil {
		return model.AnalysisResult{}, false
	}
	return *s.analysis, true
}

// install swaps in the results of a successful analysis. Callers hold the lock.
func (s *Session) install(res model.AnalysisResult, video *index.VideoTool, paperTool PaperSearcher) {
	s.video = video
	s.papers = paperTool
	s.analysis = &res
}

// remove drops the tools of a session leaving the store. Callers hold the lock.
func (s *Session) remove() {
	s.removed = true
	s.video = nil
	s.papers = nil
	s.analysis = nil
}

// SessionStore tracks live sessions and evicts idle ones.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	onEvict  func(id string)
	now      func() time.Time

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSessionStore returns a store evicting sessions idle for ttl. onEvict
// runs for every removed session, explicit deletes included.
func NewSessionStore(ttl time.Duration, onEvict func(id string)) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		onEvict:  onEvict,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Create starts a session with a fresh id.
func (s *SessionStore) Create() *Session {
	return s.GetOrCreate(uuid.NewString())
}

// Get returns an existing session and marks it used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastUsed = s.now()
	}
	return sess, ok
}

// GetOrCreate returns the session for id, creating it when absent.
func (s *SessionStore) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id}
		s.sessions[id] = sess
		logx.Debug().Str("session_id", id).Msg("session created")
	}
	sess.lastUsed = s.now()
	return sess
}

// Acquire returns the session for id locked for one operation, creating
// it when create is set. A session removed while the caller waited for
// its lock is never returned.
func (s *SessionStore) Acquire(id string, create bool) (*Session, bool) {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		if !ok {
			if !create {
				s.mu.Unlock()
				return nil, false
			}
			sess = &Session{ID: id}
			s.sessions[id] = sess
			logx.Debug().Str("session_id", id).Msg("session created")
		}
		sess.lastUsed = s.now()
		s.mu.Unlock()

		sess.mu.Lock()
		if !sess.removed {
			return sess, true
		}
		sess.mu.Unlock()
	}
}

// Delete drops a session once the operation holding it, if any, finishes.
// onEvict runs before the session lock is released. It reports whether
// the session existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return false
	}

	s.mu.Lock()
	if s.sessions[id] == sess {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	sess.remove()
	if s.onEvict != nil {
		s.onEvict(id)
	}
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle removes sessions unused for longer than the ttl and not busy.
func (s *SessionStore) EvictIdle() []string {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	cutoff := s.now().Add(-s.ttl)
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.lastUsed.After(cutoff) {
			continue
		}
		if !sess.mu.TryLock() {
			continue
		}
		delete(s.sessions, id)
		sess.remove()
		idle = append(idle, sess)
	}
	s.mu.Unlock()

	evicted := make([]string, 0, len(idle))
	for _, sess := range idle {
		logx.Debug().Str("session_id", sess.ID).Msg("idle session evicted")
		if s.onEvict != nil {
			s.onEvict(sess.ID)
		}
		sess.mu.Unlock()
		evicted = append(evicted, sess.ID)
	}
	return evicted
}

// Start runs the eviction janitor until ctx ends or Close is called.
func (s *SessionStore) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if s.ttl <= 0 {
		close(s.done)
		return
	}
	interval := max(s.ttl/4, time.Second)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.EvictIdle()
			}
		}
	}()
}

// Close stops the janitor started by Start and waits for it.
func (s *SessionStore) Close() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stop) })
	if started {
		<-s.done
	}
}
