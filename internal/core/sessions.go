package core

import (
	"sort"
	"strings"
	"sync"
)

// Sessions is the set of live sessions.
type Sessions struct {
	mu   sync.RWMutex
	byID map[string]*Session
}

// NewSessions returns an empty set.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*Session)}
}

// Add inserts s.
func (ss *Sessions) Add(s *Session) {
	ss.mu.Lock()
	ss.byID[s.ID] = s
	ss.mu.Unlock()
}

// Remove deletes s. Returns true if it was present.
func (ss *Sessions) Remove(s *Session) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if cur, ok := ss.byID[s.ID]; !ok || cur != s {
		return false
	}
	delete(ss.byID, s.ID)
	return true
}

// Contains reports whether s is live.
func (ss *Sessions) Contains(s *Session) bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.byID[s.ID] == s
}

// Len returns the number of live sessions.
func (ss *Sessions) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.byID)
}

// Snapshot returns the live sessions ordered by connect time.
func (ss *Sessions) Snapshot() []*Session {
	ss.mu.RLock()
	out := make([]*Session, 0, len(ss.byID))
	for _, s := range ss.byID {
		out = append(out, s)
	}
	ss.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// ByNick finds the session whose nickname equals nick exactly.
func (ss *Sessions) ByNick(nick string) *Session {
	return ss.find(func(s *Session) bool { return s.Nickname() == nick })
}

// ByNickFold finds the session whose nickname matches nick ignoring case.
func (ss *Sessions) ByNickFold(nick string) *Session {
	return ss.find(func(s *Session) bool { return strings.EqualFold(s.Nickname(), nick) })
}

// NickInUse reports whether a session other than self holds nick, ignoring
// case.
func (ss *Sessions) NickInUse(nick string, self *Session) bool {
	holder := ss.find(func(s *Session) bool {
		return s != self && strings.EqualFold(s.Nickname(), nick)
	})
	return holder != nil
}

// ByAccount returns the registered sessions logged in as account id.
func (ss *Sessions) ByAccount(id int64) []*Session {
	var out []*Session
	for _, s := range ss.Snapshot() {
		if u := s.User(); u != nil && u.ID == id && s.Registered() {
			out = append(out, s)
		}
	}
	return out
}

func (ss *Sessions) find(match func(*Session) bool) *Session {
	if match == nil {
		return nil
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	for _, s := range ss.byID {
		if s.Nickname() != "" && match(s) {
			return s
		}
	}
	return nil
}

// Broadcast delivers line to every live session.
func (ss *Sessions) Broadcast(line string) {
	for _, s := range ss.Snapshot() {
		s.Deliver(line)
	}
}
