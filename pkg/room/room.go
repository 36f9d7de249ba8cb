// Package room defines the realtime room abstraction the interviewer agent
// joins: a named room with one local (agent) participant and the remote
// candidates connected to it.
//
// Implementations live in sub-packages. [wsroom] is a websocket hub that
// speaks a small JSON envelope protocol.
//
// [wsroom]: github.com/MrWong99/mockinterview/pkg/room/wsroom
package room

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/MrWong99/mockinterview/pkg/audio"
)

// ErrParticipantGone is returned when the target participant has left.
var ErrParticipantGone = errors.New("room: participant gone")

// Room is a joined realtime room.
type Room interface {
	Name() string
	LocalParticipant() LocalParticipant
	RemoteParticipants() []RemoteParticipant
}

// LocalParticipant is the agent's own presence in a room.
//
// Implementations must be safe for concurrent use.
type LocalParticipant interface {
	Identity() string

	// RegisterRPCMethod installs handler for method, replacing any previous
	// registration.
	RegisterRPCMethod(method string, handler RPCHandler)

	// UnregisterRPCMethod removes the handler for method. Unknown methods
	// are ignored.
	UnregisterRPCMethod(method string)

	// StreamBytes opens an outbound byte stream. The header is delivered on
	// open and the trailer on Close; Close must be called on every path.
	StreamBytes(ctx context.Context, opts StreamOptions) (ByteStreamWriter, error)

	// PublishAudio sends a PCM frame to every remote participant. Frames may
	// be dropped when a receiver falls behind.
	PublishAudio(ctx context.Context, frame audio.Frame) error
}

// RemoteParticipant is a candidate connected to the room.
type RemoteParticipant interface {
	Identity() string

	// Metadata is the raw JSON metadata the participant joined with.
	Metadata() string

	// Audio delivers the participant's microphone frames. It is closed when
	// the participant disconnects.
	Audio() <-chan audio.Frame
}

// RPCInvocation is one incoming RPC call.
type RPCInvocation struct {
	RequestID       string
	CallerIdentity  string
	Payload         string
	ResponseTimeout time.Duration
}

// RPCHandler answers an RPC. The returned string is sent back as the
// response payload; an error is sent as an RPC error.
type RPCHandler func(ctx context.Context, inv RPCInvocation) (string, error)

// StreamOptions describes an outbound byte stream.
type StreamOptions struct {
	Topic    string
	Name     string
	MimeType string

	// Attributes are delivered with the stream header.
	Attributes map[string]string

	// DestinationIdentities restricts delivery. Empty means every remote
	// participant.
	DestinationIdentities []string

	// TotalSize is the expected length in bytes when known, else 0.
	TotalSize int
}

// ByteStreamWriter is an open outbound byte stream.
type ByteStreamWriter interface {
	io.WriteCloser

	// ID is the stream identifier carried in every chunk.
	ID() string
}

// JoinHandler is called for each remote participant that joins a room. ctx
// is cancelled when the participant leaves.
type JoinHandler func(ctx context.Context, r Room, p RemoteParticipant)
