// Package session holds the per-user intake state between template
// upload and document delivery.
package session

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoSession indicates no active session exists for the user.
var ErrNoSession = errors.New("no active session")

const (
	shardCount      = 16
	janitorInterval = time.Minute
)

// Session is one user's in-progress intake. It is mutated only through
// Store.Mutate, which serializes access per user key. Collected only
// grows until the session is removed.
type Session struct {
	ID        uuid.UUID
	UserID    string
	Template  []byte
	Step      int
	Collected map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Store maps user identity to at most one active Session. Keys are
// spread over a fixed set of shards so users on different shards never
// contend, while all operations on one user are linearized under that
// user's shard lock.
type Store struct {
	shards [shardCount]*shard
	ttl    time.Duration
	nowFn  func() time.Time
}

// NewStore creates a Store. Sessions idle longer than ttl are evicted by
// the janitor; a zero ttl disables eviction.
func NewStore(ttl time.Duration) *Store {
	st := &Store{ttl: ttl, nowFn: time.Now}
	for i := range st.shards {
		st.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return st
}

func (st *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return st.shards[h.Sum32()%shardCount]
}

// Create starts a new session for userID bound to the given template
// bytes, replacing any existing session for that user.
func (st *Store) Create(userID string, template []byte) *Session {
	now := st.nowFn()
	s := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Template:  template,
		Collected: make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}

	sh := st.shardFor(userID)
	sh.mu.Lock()
	sh.sessions[userID] = s
	sh.mu.Unlock()
	return s
}

// Mutate runs fn against the user's session while holding its shard
// lock, so concurrent advances and cancels for one user never interleave.
// Returns ErrNoSession if the user has no active session.
func (st *Store) Mutate(userID string, fn func(*Session) error) error {
	sh := st.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	if err := fn(s); err != nil {
		return err
	}
	s.UpdatedAt = st.nowFn()
	return nil
}

// Remove destroys the user's session. It reports whether a session
// existed, and is safe to call when none does.
func (st *Store) Remove(userID string) bool {
	sh := st.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, ok := sh.sessions[userID]
	delete(sh.sessions, userID)
	return ok
}

// Len returns the number of active sessions across all shards.
func (st *Store) Len() int {
	n := 0
	for _, sh := range st.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// StartJanitor periodically evicts idle sessions until ctx is done.
// No-op when the store has no TTL.
func (st *Store) StartJanitor(ctx context.Context) {
	if st.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.Sweep()
			}
		}
	}()
}

// Sweep evicts every session idle longer than the store TTL and returns
// the number evicted.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.nowFn().Add(-st.ttl)
	evicted := 0
	for _, sh := range st.shards {
		sh.mu.Lock()
		for key, s := range sh.sessions {
			if s.UpdatedAt.Before(cutoff) {
				delete(sh.sessions, key)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}
