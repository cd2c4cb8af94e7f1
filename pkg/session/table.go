package session

import (
	"sync"

	"github.com/iotivity/ca-go/pkg/endpoint"
)

// DefaultMaxSessions is the default maximum number of simultaneous peers.
const DefaultMaxSessions = 64

// Table maps endpoints to sessions.
//
// Lookups use endpoint.Matches, so a table holds at most one session for a
// set of mutually matching endpoints. Peer counts are small; lookups are
// linear.
type Table struct {
	mu          sync.RWMutex
	sessions    []*Session
	maxSessions int
}

// NewTable creates a table. maxSessions limits the number of concurrent
// sessions (0 uses DefaultMaxSessions, negative means unlimited).
func NewTable(maxSessions int) *Table {
	if maxSessions == 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Table{maxSessions: maxSessions}
}

// Find returns the session for ep, or nil.
func (t *Table) Find(ep endpoint.Endpoint) *Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, s := t.findLocked(ep)
	return s
}

func (t *Table) findLocked(ep endpoint.Endpoint) (int, *Session) {
	for i, s := range t.sessions {
		if s.endpoint.Matches(ep) {
			return i, s
		}
	}
	return -1, nil
}

// Insert adds s. It fails with ErrDuplicateIdentity if a matching session
// exists; replacing one requires removing it first.
func (t *Table) Insert(s *Session) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Closed() {
		return ErrClosed
	}
	if _, existing := t.findLocked(s.endpoint); existing != nil {
		return ErrDuplicateIdentity
	}
	if t.maxSessions > 0 && len(t.sessions) >= t.maxSessions {
		return ErrTableFull
	}
	t.sessions = append(t.sessions, s)
	return nil
}

// Remove removes the session matching ep and returns it. Removing an absent
// identity is a no-op and returns nil. The removed session is marked closed.
func (t *Table) Remove(ep endpoint.Endpoint) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, s := t.findLocked(ep)
	if s == nil {
		return nil
	}
	t.removeLocked(i)
	return s
}

// Delete removes exactly s, if it is still in the table. It reports whether
// s was removed by this call.
func (t *Table) Delete(s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, cur := range t.sessions {
		if cur == s {
			t.removeLocked(i)
			return true
		}
	}
	return false
}

func (t *Table) removeLocked(i int) {
	s := t.sessions[i]
	s.markClosed()
	last := len(t.sessions) - 1
	copy(t.sessions[i:], t.sessions[i+1:])
	t.sessions[last] = nil
	t.sessions = t.sessions[:last]
}

// ForEachMatching calls fn for every session whose endpoint passes filter,
// until fn returns false. fn runs without the table lock held and may call
// back into the table.
func (t *Table) ForEachMatching(filter endpoint.Filter, fn func(*Session) bool) {
	for _, s := range t.Snapshot() {
		if filter != nil && !filter(s.endpoint) {
			continue
		}
		if !fn(s) {
			return
		}
	}
}

// RemoveMatching removes every session whose endpoint passes filter and
// returns them. The removed sessions are marked closed.
func (t *Table) RemoveMatching(filter endpoint.Filter) []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []*Session
	kept := t.sessions[:0]
	for _, s := range t.sessions {
		if filter == nil || filter(s.endpoint) {
			s.markClosed()
			removed = append(removed, s)
			continue
		}
		kept = append(kept, s)
	}
	clear(t.sessions[len(kept):])
	t.sessions = kept
	return removed
}

// Count returns the number of sessions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// MaxSessions returns the capacity, 0 when unlimited.
func (t *Table) MaxSessions() int {
	if t.maxSessions < 0 {
		return 0
	}
	return t.maxSessions
}

// Snapshot returns the current sessions in insertion order.
func (t *Table) Snapshot() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Session(nil), t.sessions...)
}
