package sessions

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	// DefaultTTL is the idle period after which a session starts over.
	DefaultTTL = 24 * time.Hour

	shardCount = 32
)

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Store keeps sessions in memory, keyed by user ID.
// Keys are spread over independently locked shards so lookups for different
// users do not contend on one lock. Callers must serialize processing of the
// same user themselves (see dispatch.Dispatcher); the store only guarantees
// that individual GetOrCreate/Save calls are atomic.
// Nothing is persisted and nothing is evicted.
type Store struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. ttl <= 0 means DefaultTTL.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{ttl: ttl, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) shardFor(userID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%shardCount]
}

// GetOrCreate returns a copy of the session for userID, creating it if absent.
// An expired session is reset to its initial state in place before it is returned.
func (s *Store) GetOrCreate(userID string) Session {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[userID]
	if !ok {
		fresh := New(userID)
		sh.sessions[userID] = &fresh
		return fresh
	}
	if sess.Expired(s.now(), s.ttl) {
		*sess = New(userID)
	}
	return *sess
}

// Save writes a mutated session back.
func (s *Store) Save(sess Session) {
	sh := s.shardFor(sess.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	stored := sess
	sh.sessions[sess.UserID] = &stored
}

// Snapshot returns the stored session without applying the reset rule.
func (s *Store) Snapshot(userID string) (Session, bool) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.sessions)
		sh.mu.Unlock()
	}
	return n
}

// TTL returns the idle reset period.
func (s *Store) TTL() time.Duration { return s.ttl }
