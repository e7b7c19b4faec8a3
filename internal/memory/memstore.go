package memory

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-process Store used when no database is configured.
type MemStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

// NewMemStore creates an empty in-process store.
func NewMemStore() *MemStore {
	return &MemStore{
		conversations: map[string]*Conversation{},
	}
}

func storeKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}

func (s *MemStore) Load(_ context.Context, userID, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[storeKey(userID, sessionID)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *MemStore) Save(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[storeKey(conv.UserID, conv.SessionID)] = cloneConversation(conv)
	return nil
}

func (s *MemStore) Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		delete(s.conversations, storeKey(userID, sessionID))
		return nil
	}

	for key, conv := range s.conversations {
		if conv.UserID == userID {
			delete(s.conversations, key)
		}
	}
	return nil
}

func (s *MemStore) Sessions(_ context.Context, userID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			sessions = append(sessions, cloneConversation(conv))
		}
	}
	return sessions, nil
}

func (s *MemStore) Global(_ context.Context) (int, int, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var messages int
	var bytes int64
	for _, conv := range s.conversations {
		messages += len(conv.Messages)
		for _, m := range conv.Messages {
			bytes += int64(len(m.Content))
		}
	}
	return len(s.conversations), messages, bytes, nil
}

func (s *MemStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, conv := range s.conversations {
		if conv.LastAccessed.Before(cutoff) {
			delete(s.conversations, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemStore) Close() error {
	return nil
}

func cloneConversation(conv *Conversation) *Conversation {
	clone := *conv
	clone.Messages = make([]StoredMessage, len(conv.Messages))
	copy(clone.Messages, conv.Messages)
	return &clone
}
