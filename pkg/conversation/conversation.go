package conversation

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is a single turn in a conversation. Empty content is accepted, the
// orchestrator forwards it to the provider as-is.
type Message struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// Conversation is the persisted record for a multi-turn exchange with a model.
//
// Messages is append-only and its order is the history order. Tokens only ever
// accumulates provider-reported usage, it is never recomputed from content.
// Revision backs the store's compare-and-swap write-back and is not exposed
// over the wire.
type Conversation struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Params    Params             `json:"params" bson:"params"`
	Tokens    int                `json:"tokens" bson:"tokens"`
	Messages  []Message          `json:"messages" bson:"messages"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
	Revision  int64              `json:"-" bson:"revision"`
}

// Summary is the lightweight list view, omitting the message history.
type Summary struct {
	ID     primitive.ObjectID `json:"id" bson:"_id"`
	Name   string             `json:"name" bson:"name"`
	Params Params             `json:"params" bson:"params"`
	Tokens int                `json:"tokens" bson:"tokens"`
}

// New creates an empty conversation with a fresh ObjectID. Tokens start at
// zero and the message list is empty.
func New(name string, params Params) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Params:    params,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy. The orchestrator mutates a clone so that a failed
// model call or write-back leaves the loaded record untouched.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	out.Params = c.Params.Clone()
	return &out
}

// Touch stamps the record as mutated now.
func (c *Conversation) Touch() {
	c.UpdatedAt = time.Now().UTC()
}

// Summary returns the list view of the conversation.
func (c *Conversation) Summary() Summary {
	return Summary{
		ID:     c.ID,
		Name:   c.Name,
		Params: c.Params,
		Tokens: c.Tokens,
	}
}
