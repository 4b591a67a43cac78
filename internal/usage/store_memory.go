package usage

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu    sync.Mutex
	users map[string]Usage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: make(map[string]Usage)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = defaultUsage()
		s.users[userID] = u
	}
	return u, nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, n int) (Usage, error) {
	if err := ctx.Err(); err != nil {
		return Usage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = defaultUsage()
	}
	if n > 0 {
		if u.Used+n > u.Limit {
			return Usage{}, ErrLimitReached
		}
		u.Used += n
	}
	s.users[userID] = u
	return u, nil
}
