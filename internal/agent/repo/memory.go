package repo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/voicebot-core/server/internal/agent/model"
)

// ErrInvalidCallID is returned for an empty call identifier.
var ErrInvalidCallID = errors.New("call id is empty")

func validCallID(callID string) error {
	if callID == "" {
		return ErrInvalidCallID
	}
	return nil
}

type memorySession struct {
	mu       sync.Mutex
	history  []*schema.Message
	pending  []schema.ToolCall
	attrs    map[string]string
	lastSeen time.Time
	evicted  bool
}

// MemorySessionStore keeps sessions in process memory. Distinct calls never
// contend: each session carries its own lock.
type MemorySessionStore struct {
	sessions sync.Map // callID -> *memorySession
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{now: time.Now}
}

func (s *MemorySessionStore) session(callID string) *memorySession {
	if v, ok := s.sessions.Load(callID); ok {
		return v.(*memorySession)
	}
	v, _ := s.sessions.LoadOrStore(callID, &memorySession{attrs: map[string]string{}, lastSeen: s.now()})
	return v.(*memorySession)
}

// apply runs fn under the session lock unless Sweep already evicted the
// session, in which case it reports false and leaves the session untouched.
func (s *MemorySessionStore) apply(sess *memorySession, fn func(*memorySession)) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return false
	}
	fn(sess)
	sess.lastSeen = s.now()
	return true
}

// write applies fn to the live session for callID, retrying against a fresh
// session when a concurrent Sweep evicts the one it loaded.
func (s *MemorySessionStore) write(callID string, fn func(*memorySession)) {
	for !s.apply(s.session(callID), fn) {
	}
}

func (s *MemorySessionStore) Init(_ context.Context, callID string) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	s.session(callID)
	return nil
}

func (s *MemorySessionStore) AppendTurns(_ context.Context, callID string, msgs ...*schema.Message) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	s.write(callID, func(sess *memorySession) {
		sess.history = append(sess.history, msgs...)
	})
	return nil
}

func (s *MemorySessionStore) History(_ context.Context, callID string) ([]*schema.Message, error) {
	if err := validCallID(callID); err != nil {
		return nil, err
	}
	v, ok := s.sessions.Load(callID)
	if !ok {
		return []*schema.Message{}, nil
	}
	sess := v.(*memorySession)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]*schema.Message, len(sess.history))
	copy(out, sess.history)
	return out, nil
}

func (s *MemorySessionStore) SetPendingToolCalls(_ context.Context, callID string, calls []schema.ToolCall) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	s.write(callID, func(sess *memorySession) {
		if len(calls) == 0 {
			sess.pending = nil
		} else {
			sess.pending = append([]schema.ToolCall(nil), calls...)
		}
	})
	return nil
}

func (s *MemorySessionStore) TakePendingToolCalls(_ context.Context, callID string) ([]schema.ToolCall, bool, error) {
	if err := validCallID(callID); err != nil {
		return nil, false, err
	}
	v, ok := s.sessions.Load(callID)
	if !ok {
		return nil, false, nil
	}
	sess := v.(*memorySession)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return nil, false, nil
	}
	calls := sess.pending
	sess.pending = nil
	sess.lastSeen = s.now()
	return calls, len(calls) > 0, nil
}

func (s *MemorySessionStore) SetCallerAttribute(_ context.Context, callID, attr, value string) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	s.write(callID, func(sess *memorySession) {
		sess.attrs[attr] = value
	})
	return nil
}

func (s *MemorySessionStore) CallerAttribute(_ context.Context, callID, attr string) (string, bool, error) {
	if err := validCallID(callID); err != nil {
		return "", false, err
	}
	v, ok := s.sessions.Load(callID)
	if !ok {
		return "", false, nil
	}
	sess := v.(*memorySession)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	val, ok := sess.attrs[attr]
	return val, ok, nil
}

// Sweep drops sessions that have not been touched for longer than idle and
// returns how many were removed. A session is marked evicted under its own
// lock before it leaves the map, so a writer holding a stale pointer retries
// instead of writing into a detached session.
func (s *MemorySessionStore) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := s.now().Add(-idle)
	removed := 0
	s.sessions.Range(func(k, v any) bool {
		sess := v.(*memorySession)
		sess.mu.Lock()
		if sess.lastSeen.Before(cutoff) {
			sess.evicted = true
			if s.sessions.CompareAndDelete(k, sess) {
				removed++
			}
		}
		sess.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of live sessions.
func (s *MemorySessionStore) Len() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

var _ model.SessionStore = (*MemorySessionStore)(nil)
