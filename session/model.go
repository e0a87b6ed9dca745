package session

import (
	"time"

	"github.com/MrEthical07/netapi/security"
	"github.com/google/uuid"
)

// Session is the per-client dispatch context. It holds at most one attached
// security profile plus string values set by handlers.
//
// A Session is owned by the request that loaded it and is not safe for concurrent
// use.
type Session struct {
	ID        string
	CreatedAt int64
	ExpiresAt int64

	profile security.Profile
	values  map[string]string

	isNew bool
	dirty bool
}

// New returns an unsaved session with a random ID expiring after lifetime.
func New(lifetime time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
		isNew:     true,
	}
}

// Profile returns the attached security profile, or nil.
func (s *Session) Profile() security.Profile {
	if s == nil {
		return nil
	}
	return s.profile
}

// Attach replaces the attached profile with p.
func (s *Session) Attach(p security.Profile) {
	s.profile = p
	s.dirty = true
}

// Detach clears the attached profile. Detaching from a session without a profile
// is a no-op that still marks the session modified, so that a stale stored copy
// is overwritten.
func (s *Session) Detach() {
	s.profile = nil
	s.dirty = true
}

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Remove deletes key.
func (s *Session) Remove(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Keys returns the number of stored values.
func (s *Session) Keys() int { return len(s.values) }

// IsNew reports whether the session has never been saved.
func (s *Session) IsNew() bool { return s.isNew }

// Dirty reports whether the session changed since it was loaded or saved.
func (s *Session) Dirty() bool { return s.dirty }

// Expired reports whether the absolute lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

func (s *Session) markSaved() {
	s.isNew = false
	s.dirty = false
}
