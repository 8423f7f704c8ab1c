// Package llm abstracts the chat-completion provider used for intent
// classification and conversational replies.
package llm

import (
	"context"

	"github.com/crxforge/crxforge/pkg/types"
)

// Provider defines the interface for chat-completion backends.
//
// Providers handle API communication and return simple StreamChunk instances,
// keeping them reusable outside the orchestration layer and testable with
// fakes.
type Provider interface {
	// StreamCompletion sends messages to the model and streams back response
	// chunks. The channel is closed when streaming completes or an error
	// occurs; stream-time errors arrive as chunks with Error set. An error
	// is returned only when streaming cannot be initiated.
	StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *StreamChunk, error)

	// Complete sends messages to the model and returns the full response.
	// It is a convenience wrapper around StreamCompletion that accumulates
	// all chunks.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModel returns the model name being used.
	GetModel() string
}

// StreamChunk is one piece of a streamed completion.
type StreamChunk struct {
	// Role is set on the first chunk of a response.
	Role string

	// Content is the text delta for this chunk.
	Content string

	// Finished marks the final chunk of a completed response.
	Finished bool

	// Error is set when the stream failed mid-flight.
	Error error
}

// IsError reports whether this chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}
