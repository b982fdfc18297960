package orchestrator

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// idLocks serializes work per conversation id. Entries are reference counted
// and removed once the last holder releases, so the map stays bounded by the
// number of in-flight queries, not the number of conversations.
type idLocks struct {
	mu      sync.Mutex
	entries map[primitive.ObjectID]*idLockEntry
}

type idLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newIDLocks() *idLocks {
	return &idLocks{
		entries: map[primitive.ObjectID]*idLockEntry{},
	}
}

// acquire blocks until the per-id lock is held and returns the release
// function. Locks on distinct ids are independent.
func (l *idLocks) acquire(id primitive.ObjectID) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &idLockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
