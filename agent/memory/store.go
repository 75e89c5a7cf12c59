package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/assistant-orchestrator/agent/contract"
)

// Store persists conversation contexts by session id. Load returns
// contract.ErrContextNotFound for unknown sessions. Implementations must not
// share memory with their callers.
type Store interface {
	Load(ctx context.Context, sessionID string) (*ConversationContext, error)
	Save(ctx context.Context, conv *ConversationContext) error
	Delete(ctx context.Context, sessionID string) error
}

type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]*ConversationContext
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: map[string]*ConversationContext{}}
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (*ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.items[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session=%s", contractx.ErrContextNotFound, sessionID)
	}
	return conv.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, conv *ConversationContext) error {
	if conv == nil {
		return fmt.Errorf("%w: conversation context is nil", contractx.ErrValidation)
	}
	if strings.TrimSpace(conv.SessionID) == "" {
		return fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[conv.SessionID] = conv.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}
