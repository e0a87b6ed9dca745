package session

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/netapi/security"
)

type memoryEntry struct {
	data     []byte
	deadline time.Time
}

// MemoryStore is an in-process [Store]. Sessions are kept encoded so that a loaded
// session never aliases the one that was saved.
type MemoryStore struct {
	codec security.ProfileCodec
	opts  MemoryOptions

	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryOptions configures a [MemoryStore].
type MemoryOptions struct {
	// Sliding moves the deadline to now+IdleTTL on every load, never past the
	// session's absolute expiry.
	Sliding bool
	IdleTTL time.Duration
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore(codec security.ProfileCodec, opts MemoryOptions) *MemoryStore {
	return &MemoryStore{
		codec:   codec,
		opts:    opts,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Load implements [Store].
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[id]
	if ok && !now.Before(entry.deadline) {
		delete(m.entries, id)
		ok = false
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	sess, err := Decode(entry.data, m.codec)
	if err != nil {
		return nil, err
	}
	sess.ID = id

	if m.opts.Sliding && m.opts.IdleTTL > 0 {
		if ttl := boundTTL(sess, m.opts.IdleTTL, now); ttl > 0 {
			entry.deadline = now.Add(ttl)
			m.entries[id] = entry
		}
	}
	return sess, nil
}

// Save implements [Store].
func (m *MemoryStore) Save(_ context.Context, sess *Session, ttl time.Duration) error {
	now := m.now()
	ttl = boundTTL(sess, ttl, now)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	data, err := Encode(sess, m.codec)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[sess.ID] = memoryEntry{data: data, deadline: now.Add(ttl)}
	m.mu.Unlock()

	sess.markSaved()
	return nil
}

// Delete implements [Store].
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, including expired ones not yet loaded.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
