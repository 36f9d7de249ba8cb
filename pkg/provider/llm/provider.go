// Package llm defines the Provider interface for text Large Language Model
// backends.
//
// The interview agent itself talks to a speech-to-speech model; text LLMs are
// used for offline work such as generating a question bank before an
// interview starts.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message drives the reply.
	Messages []Message

	// SystemPrompt is injected before Messages when non-empty.
	SystemPrompt string

	// Temperature in [0.0, 2.0]. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion. Zero uses the provider default.
	MaxTokens int

	// JSONMode asks the backend to return a single JSON object, where the
	// backend supports it.
	JSONMode bool

	// Schema constrains the JSON reply further. It implies JSONMode.
	Schema *JSONSchema
}

// CompletionResponse is the result of a non-streaming completion.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any text LLM backend.
type Provider interface {
	// Complete sends req and blocks until the full response is available.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() ModelCapabilities
}
