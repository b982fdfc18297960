// Package inference wraps the model provider behind a narrow client
// capability: ordered turns and generation settings in, generated text and
// usage accounting out.
package inference

import (
	"context"

	"github.com/go-go-golems/parley/pkg/conversation"
)

// Usage is the provider-reported token accounting for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of a single model call. Usage is nil when the
// provider did not report any accounting; callers must not assume zero cost.
type Completion struct {
	Content string
	Usage   *Usage
}

// Client is the black-box model capability. A failure is a single uniform
// error, there is no retry policy at this level.
type Client interface {
	Complete(ctx context.Context, messages []conversation.Message, settings conversation.GenerationSettings) (*Completion, error)
}
