package store

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// MemoryStore is an in-process Store with the same revision semantics as the
// Mongo implementation. It backs tests and the --in-memory development mode.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[primitive.ObjectID]*conversation.Conversation
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: map[primitive.ObjectID]*conversation.Conversation{},
	}
}

func (s *MemoryStore) Get(_ context.Context, id primitive.ObjectID) (*conversation.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, conversation.ErrNotFound
	}
	return conv.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, conv *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.conversations[conv.ID]
	if !ok {
		return conversation.ErrNotFound
	}
	if current.Revision != conv.Revision {
		return conversation.ErrConflict
	}

	next := conv.Clone()
	next.Revision = conv.Revision + 1
	s.conversations[conv.ID] = next
	conv.Revision = next.Revision
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, conv *conversation.Conversation) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	s.conversations[conv.ID] = conv.Clone()
	return conv.ID, nil
}

func (s *MemoryStore) Delete(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false, nil
	}
	delete(s.conversations, id)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]conversation.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]conversation.Summary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		summaries = append(summaries, conv.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ID.Hex() < summaries[j].ID.Hex()
	})
	return summaries, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
