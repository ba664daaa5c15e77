package conversation

import (
	"context"
	"sync"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// MemoryStore keeps the exchange log in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	exchanges []domain.Exchange
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, exchange domain.Exchange) error {
	s.mu.Lock()
	s.exchanges = append(s.exchanges, exchange)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exchanges(_ context.Context) ([]domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out, nil
}

func (s *MemoryStore) History(ctx context.Context, mode domain.Mode) ([]domain.Exchange, error) {
	all, err := s.Exchanges(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByMode(all, mode), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.exchanges = nil
	s.mu.Unlock()
	return nil
}

// FilterByMode keeps the exchanges of one partition in their original order.
func FilterByMode(exchanges []domain.Exchange, mode domain.Mode) []domain.Exchange {
	out := make([]domain.Exchange, 0, len(exchanges))
	for _, ex := range exchanges {
		if ex.Mode == mode {
			out = append(out, ex)
		}
	}
	return out
}

var _ ports.ConversationStore = (*MemoryStore)(nil)
