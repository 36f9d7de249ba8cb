// Package s2s defines the Provider interface for real-time speech-to-speech
// backends.
//
// An S2S provider wraps a hosted voice model that accepts raw audio, performs
// recognition, reasoning and synthesis internally, and streams audio back in
// a single stateful session. The interview agent consumes this interface; it
// never reimplements speech recognition or synthesis.
//
// The central abstraction is SessionHandle: a bidirectional channel that
// carries audio, transcripts and tool calls concurrently.
//
// All implementations must be safe for concurrent use.
package s2s

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

// ToolCallHandler is invoked whenever the model requests a tool call. It
// receives the tool name and JSON-encoded arguments and returns the result
// text injected back into the session.
//
// Implementations call the handler on its own goroutine, so a slow tool does
// not stall the receive loop. ctx is cancelled when the session closes.
type ToolCallHandler func(ctx context.Context, name string, args string) (string, error)

// ErrGoAway is reported through the error handler when the backend announces
// it will end the session soon. Callers reconnect with the history so far.
var ErrGoAway = errors.New("s2s: backend is ending the session")

// Roles used in [ContextItem] and [Transcript].
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ContextItem is one prior conversation turn used to seed a session.
type ContextItem struct {
	// Role is one of [RoleUser], [RoleAssistant] or [RoleSystem].
	Role string

	// Content is the text of the turn.
	Content string
}

// Transcript is a piece of recognised user speech or generated model output.
type Transcript struct {
	// Role is [RoleUser] for candidate speech and [RoleAssistant] for the model.
	Role string

	// Text is the transcribed fragment.
	Text string

	// Final marks the last fragment of a turn.
	Final bool

	// Timestamp is when the fragment was received.
	Timestamp time.Time
}

// SessionConfig is the configuration for a new S2S session.
type SessionConfig struct {
	// Model overrides the provider's default model when non-empty.
	Model string

	// Voice is the prebuilt voice name for synthesised speech.
	Voice string

	// Instructions is the system prompt.
	Instructions string

	// Tools are offered to the model for the lifetime of the session.
	Tools []llm.ToolDefinition

	// Temperature is the sampling temperature. Zero leaves the provider default.
	Temperature float64

	// MaxOutputTokens caps each response. Zero means unbounded.
	MaxOutputTokens int

	// Modalities lists the response modalities, e.g. "TEXT", "AUDIO". Empty
	// means audio only.
	Modalities []string

	// APIKey overrides the provider-level credential for this session.
	APIKey string

	// History seeds the session with prior turns before the first reply.
	History []ContextItem
}

// SessionHandle represents an open S2S session. It is an interface so that
// tests can supply mock implementations without a live connection.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM chunk (16 kHz, s16le, mono).
	SendAudio(chunk []byte) error

	// Audio emits synthesised PCM output (24 kHz, s16le, mono). The channel
	// is closed when the session ends; check Err afterwards.
	Audio() <-chan []byte

	// Err returns the error that ended the session, or nil after a clean close.
	Err() error

	// Transcripts emits user and model transcript fragments. Closed when the
	// session ends.
	Transcripts() <-chan Transcript

	// OnToolCall registers the tool handler. Passing nil clears it.
	OnToolCall(handler ToolCallHandler)

	// OnError registers a callback for non-fatal provider errors.
	OnError(handler func(error))

	// GenerateReply asks the model to produce a response now, steered by
	// instructions.
	GenerateReply(ctx context.Context, instructions string) error

	// Interrupt stops the current response.
	Interrupt() error

	// Close terminates the session. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any S2S backend.
type Provider interface {
	// Connect establishes a new session. The caller owns the returned handle.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)
}
