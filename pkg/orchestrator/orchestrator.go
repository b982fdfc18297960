// Package orchestrator coordinates the conversation store, the prompt builder
// and the model client to process queries, and carries the plain CRUD
// lifecycle of conversation records.
package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/prompt"
	"github.com/go-go-golems/parley/pkg/store"
)

// Orchestrator runs the turn-processing protocol: load state, build the
// prompt, call the model, merge the response back, persist.
type Orchestrator struct {
	store  store.Store
	client inference.Client
	locks  *idLocks
}

func New(s store.Store, client inference.Client) *Orchestrator {
	return &Orchestrator{
		store:  s,
		client: client,
		locks:  newIDLocks(),
	}
}

// Result is the outcome of a processed query: the assistant's reply and the
// conversation state as persisted.
type Result struct {
	Response     string                     `json:"response"`
	Conversation *conversation.Conversation `json:"conversation"`
}

// ProcessQuery appends msg and the model's reply to the conversation and
// accumulates provider-reported usage into the token counter.
//
// The whole read-modify-write sequence holds a per-conversation-id lock, so
// two queries on the same conversation serialize instead of losing an update;
// queries on different ids proceed independently. No store-wide lock is held
// across the model call.
//
// On a model failure the working copy is discarded and the persisted record
// is untouched. On a write-back failure the model call's cost has already
// been incurred at the provider; that inconsistency window is accepted and
// the failure surfaces as conversation.ErrConflict.
func (o *Orchestrator) ProcessQuery(ctx context.Context, id primitive.ObjectID, msg conversation.Message) (*Result, error) {
	release := o.locks.acquire(id)
	defer release()

	conv, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	turns := prompt.Build(conv, msg)
	settings := conv.Params.Resolve()

	log.Debug().
		Str("conversation_id", id.Hex()).
		Str("model", settings.Model).
		Int("history_len", len(conv.Messages)).
		Msg("processing query")

	completion, err := o.client.Complete(ctx, turns, settings)
	if err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", id.Hex()).
			Str("model", settings.Model).
			Msg("model call failed")
		return nil, &conversation.ModelCallError{Err: err}
	}

	work := conv.Clone()
	work.Messages = append(work.Messages, msg)
	work.Messages = append(work.Messages, conversation.Message{
		Role:    conversation.RoleAssistant,
		Content: completion.Content,
	})
	if completion.Usage != nil {
		work.Tokens += completion.Usage.TotalTokens
	}
	work.Touch()

	// The merged state goes back in one atomic write, there is no partial
	// persistence of the assistant turn without its token update.
	if err := o.store.Put(ctx, work); err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", id.Hex()).
			Msg("failed to persist processed query")
		if errors.Is(err, conversation.ErrNotFound) {
			return nil, errors.Wrap(conversation.ErrConflict, "conversation deleted during query")
		}
		return nil, err
	}

	log.Info().
		Str("conversation_id", id.Hex()).
		Int("tokens", work.Tokens).
		Int("num_messages", len(work.Messages)).
		Msg("processed query")

	return &Result{
		Response:     completion.Content,
		Conversation: work,
	}, nil
}
