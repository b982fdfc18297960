// Package prompt renders stored conversation state into the ordered turn list
// submitted to the model provider.
package prompt

import (
	"github.com/go-go-golems/parley/pkg/conversation"
)

// Build produces the full turn list for a model call: a system turn (from the
// conversation params, or the default instruction), the stored history in
// order, then the incoming message. The conversation is not mutated.
func Build(conv *conversation.Conversation, next conversation.Message) []conversation.Message {
	out := make([]conversation.Message, 0, len(conv.Messages)+2)
	out = append(out, conversation.Message{
		Role:    conversation.RoleSystem,
		Content: conv.Params.EffectiveSystemPrompt(),
	})
	out = append(out, conv.Messages...)
	out = append(out, next)
	return out
}
