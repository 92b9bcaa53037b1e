package contactgate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"business-directory/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

type pairKey struct {
	session  string
	business string
}

// MemoryStore keeps gate state in process; suitable for a single instance.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[pairKey]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[pairKey]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID, businessID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[pairKey{sessionID, businessID}]; ok {
		return e, nil
	}
	return Entry{State: Locked}, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID, businessID string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[pairKey{sessionID, businessID}] = e
	return nil
}

// RedisStore shares gate state across API instances. Entries expire with the
// visitor session.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sessionID, businessID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sessionID, businessID)
}

func (s *RedisStore) Load(ctx context.Context, sessionID, businessID string) (Entry, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID, businessID)).Result()
	if err == redis.Nil {
		return Entry{State: Locked}, nil
	}
	if err != nil {
		return Entry{}, errors.NewUnavailableError("redis", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		// A corrupt entry is treated as never seen.
		return Entry{State: Locked}, nil
	}
	return e, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID, businessID string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal gate entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID, businessID), data, s.ttl).Err(); err != nil {
		return errors.NewUnavailableError("redis", err)
	}
	return nil
}
