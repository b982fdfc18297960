package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/store"
)

// Lifecycle covers create/read/update/delete of conversation records. Updates
// only ever touch name and params; messages and tokens belong to the query
// path.
type Lifecycle struct {
	store store.Store
}

func NewLifecycle(s store.Store) *Lifecycle {
	return &Lifecycle{store: s}
}

func (l *Lifecycle) Create(ctx context.Context, name string, params conversation.Params) (*conversation.Conversation, error) {
	conv := conversation.New(name, params)
	if _, err := l.store.Insert(ctx, conv); err != nil {
		log.Error().Err(err).Str("name", name).Msg("failed to create conversation")
		return nil, err
	}
	log.Info().Str("conversation_id", conv.ID.Hex()).Str("name", name).Msg("created conversation")
	return conv, nil
}

func (l *Lifecycle) List(ctx context.Context) ([]conversation.Summary, error) {
	summaries, err := l.store.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list conversations")
		return nil, err
	}
	log.Debug().Int("count", len(summaries)).Msg("listed conversations")
	return summaries, nil
}

func (l *Lifecycle) Get(ctx context.Context, id primitive.ObjectID) (*conversation.Conversation, error) {
	return l.store.Get(ctx, id)
}

// Update replaces name and params on the stored record. The write goes
// through the store's compare-and-swap, so racing a concurrent query reports
// a conflict rather than dropping its turns.
func (l *Lifecycle) Update(ctx context.Context, id primitive.ObjectID, name string, params conversation.Params) (*conversation.Conversation, error) {
	conv, err := l.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	conv.Name = name
	conv.Params = params
	conv.Touch()

	if err := l.store.Put(ctx, conv); err != nil {
		log.Error().Err(err).Str("conversation_id", id.Hex()).Msg("failed to update conversation")
		return nil, err
	}
	log.Info().Str("conversation_id", id.Hex()).Msg("updated conversation")
	return conv, nil
}

// Delete removes the record and reports whether it existed. Deletion is
// terminal; ids are never reused.
func (l *Lifecycle) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	deleted, err := l.store.Delete(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", id.Hex()).Msg("failed to delete conversation")
		return false, err
	}
	if deleted {
		log.Info().Str("conversation_id", id.Hex()).Msg("deleted conversation")
	} else {
		log.Debug().Str("conversation_id", id.Hex()).Msg("no conversation to delete")
	}
	return deleted, nil
}
