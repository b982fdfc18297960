package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// Store is the persistence contract for conversation records.
//
// Put is the write-back half of a read-modify-write sequence: it compares the
// Revision the caller read against the stored one and only replaces the record
// when they match, so a lost race surfaces as conversation.ErrConflict instead
// of a silent overwrite. On success the Revision on the passed record is
// bumped to the newly stored value.
type Store interface {
	// Get returns the record for id, or conversation.ErrNotFound.
	Get(ctx context.Context, id primitive.ObjectID) (*conversation.Conversation, error)
	// Put replaces the record, compare-and-swapping on Revision. Unknown ids
	// report conversation.ErrNotFound, stale revisions conversation.ErrConflict.
	Put(ctx context.Context, conv *conversation.Conversation) error
	// Insert stores a new record and returns its id.
	Insert(ctx context.Context, conv *conversation.Conversation) (primitive.ObjectID, error)
	// Delete removes the record and reports whether it existed. Deleting an
	// unknown id is not an error.
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
	// List returns lightweight summaries of all conversations.
	List(ctx context.Context) ([]conversation.Summary, error)
	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}
