package tripsession

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/wanderplan/wanderplan/internal/types"
)

// Store holds live trip sessions in memory with TTL-based expiry. Sessions
// are conversational scratch state; only saved itineraries and personas
// outlive them.
type Store struct {
	sessions *cache.Cache
}

type sessionEntry struct {
	mu      sync.Mutex
	session *types.TripSession
}

// NewStore creates a session store. Sessions idle longer than ttl expire and
// behave as if they never existed.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: cache.New(ttl, 2*ttl),
	}
}

// Put registers a new session.
func (s *Store) Put(session *types.TripSession) {
	s.sessions.SetDefault(session.ID.String(), &sessionEntry{session: session})
}

// Acquire locks the session for exclusive mutation and returns it together
// with a release func. A session already held by another request yields
// ErrSessionBusy immediately; requests never interleave on one session.
func (s *Store) Acquire(id uuid.UUID) (*types.TripSession, func(), error) {
	v, found := s.sessions.Get(id.String())
	if !found {
		return nil, nil, fmt.Errorf("session %s not found or expired: %w", id, types.ErrNotFound)
	}
	entry := v.(*sessionEntry)
	if !entry.mu.TryLock() {
		return nil, nil, fmt.Errorf("session %s: %w", id, types.ErrSessionBusy)
	}

	// Refresh the TTL on every touch so an active conversation never expires
	// mid-flow.
	s.sessions.SetDefault(id.String(), entry)

	release := func() {
		entry.session.UpdatedAt = time.Now()
		entry.mu.Unlock()
	}
	return entry.session, release, nil
}

// Peek returns a point-in-time copy of the session for read-only rendering.
// It takes the same per-session lock as Acquire, so a read never observes a
// half-applied transition and never races a mutation in flight.
func (s *Store) Peek(id uuid.UUID) (*types.TripSession, error) {
	v, found := s.sessions.Get(id.String())
	if !found {
		return nil, fmt.Errorf("session %s not found or expired: %w", id, types.ErrNotFound)
	}
	entry := v.(*sessionEntry)
	if !entry.mu.TryLock() {
		return nil, fmt.Errorf("session %s: %w", id, types.ErrSessionBusy)
	}
	defer entry.mu.Unlock()
	return entry.session.Snapshot(), nil
}

// Delete removes a session.
func (s *Store) Delete(id uuid.UUID) {
	s.sessions.Delete(id.String())
}
