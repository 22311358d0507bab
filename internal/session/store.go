package session

import (
	"fmt"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the number of shards used by NewStore
const DefaultShardCount = 16

// Store maps session identifiers to sessions. It is safe for concurrent use.
type Store struct {
	shards []*shard
	mask   uint32
	newID  func() (string, error)
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates a store with DefaultShardCount shards
func NewStore() *Store {
	return NewStoreWithShards(DefaultShardCount)
}

// NewStoreWithShards creates a store with the given shard count, which must
// be a power of two. Other values fall back to DefaultShardCount.
func NewStoreWithShards(count int) *Store {
	if count <= 0 || count&(count-1) != 0 {
		count = DefaultShardCount
	}

	s := &Store{
		shards: make([]*shard, count),
		mask:   uint32(count - 1),
		newID:  NewID,
	}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *Store) shardFor(id string) *shard {
	return s.shards[murmur3.Sum32([]byte(id))&s.mask]
}

// Identify returns the identifier carried by a Cookie header, or issues a new
// one when the header has none. issued reports the latter.
func (s *Store) Identify(cookieHeader string) (id string, issued bool, err error) {
	if id, ok := IDFromCookie(cookieHeader); ok {
		return id, false, nil
	}
	id, err = s.newID()
	if err != nil {
		return "", false, fmt.Errorf("issue session id: %w", err)
	}
	return id, true, nil
}

// Ensure returns the session for id, creating an empty one if absent.
// created reports whether it was created by this call.
func (s *Store) Ensure(id string) (sess *Session, created bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sess, ok := sh.sessions[id]; ok {
		return sess, false
	}
	sess = newSession(id)
	sh.sessions[id] = sess
	return sess, true
}

// Get returns the session for id without creating it
func (s *Store) Get(id string) (*Session, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	return sess, ok
}

// Delete forgets a session. Expiry policy belongs to the caller.
func (s *Store) Delete(id string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, id)
}

// Count returns the number of sessions held
func (s *Store) Count() int {
	count := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		count += len(sh.sessions)
		sh.mu.Unlock()
	}
	return count
}
