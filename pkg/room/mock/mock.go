// Package mock provides in-memory test doubles for the room interfaces.
//
//	rm := mock.NewRoom("interview-1")
//	cand := rm.AddRemote("candidate-abc12", `{"interviewer_role":"HR"}`)
//	out, _ := rm.Local.Invoke(ctx, "pg.updateConfig", room.RPCInvocation{CallerIdentity: cand.Identity()})
package mock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/room"
)

var (
	_ room.Room              = (*Room)(nil)
	_ room.LocalParticipant  = (*LocalParticipant)(nil)
	_ room.RemoteParticipant = (*RemoteParticipant)(nil)
	_ room.ByteStreamWriter  = (*Stream)(nil)
)

// ErrNoHandler is returned by Invoke for an unregistered method.
var ErrNoHandler = errors.New("mock: no rpc handler")

// Room is an in-memory room.
type Room struct {
	mu      sync.Mutex
	name    string
	remotes []*RemoteParticipant

	Local *LocalParticipant
}

// NewRoom returns an empty room whose local participant is "agent".
func NewRoom(name string) *Room {
	return &Room{name: name, Local: &LocalParticipant{identity: "agent", handlers: map[string]room.RPCHandler{}}}
}

func (r *Room) Name() string { return r.name }

func (r *Room) LocalParticipant() room.LocalParticipant { return r.Local }

func (r *Room) RemoteParticipants() []room.RemoteParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]room.RemoteParticipant, len(r.remotes))
	for i, p := range r.remotes {
		out[i] = p
	}
	return out
}

// AddRemote adds a candidate with the given metadata.
func (r *Room) AddRemote(identity, metadata string) *RemoteParticipant {
	p := NewRemote(identity, metadata)
	r.mu.Lock()
	r.remotes = append(r.remotes, p)
	r.mu.Unlock()
	return p
}

// ── Local participant ────────────────────────────────────────────────────────

// LocalParticipant records RPC registrations, streams and published audio.
type LocalParticipant struct {
	mu       sync.Mutex
	identity string
	handlers map[string]room.RPCHandler

	// StreamErr, if non-nil, is returned by StreamBytes.
	StreamErr error

	// PublishErr, if non-nil, is returned by PublishAudio.
	PublishErr error

	streams   []*Stream
	published []audio.Frame
}

func (l *LocalParticipant) Identity() string { return l.identity }

func (l *LocalParticipant) RegisterRPCMethod(method string, h room.RPCHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[method] = h
}

func (l *LocalParticipant) UnregisterRPCMethod(method string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, method)
}

// Registered reports whether a handler for method is installed.
func (l *LocalParticipant) Registered(method string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.handlers[method]
	return ok
}

// Invoke calls the handler registered for method as a remote caller would.
func (l *LocalParticipant) Invoke(ctx context.Context, method string, inv room.RPCInvocation) (string, error) {
	l.mu.Lock()
	h, ok := l.handlers[method]
	l.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHandler, method)
	}
	return h(ctx, inv)
}

func (l *LocalParticipant) StreamBytes(_ context.Context, opts room.StreamOptions) (room.ByteStreamWriter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.StreamErr != nil {
		return nil, l.StreamErr
	}
	s := &Stream{id: fmt.Sprintf("stream-%d", len(l.streams)+1), Opts: opts}
	l.streams = append(l.streams, s)
	return s, nil
}

// Streams returns the streams opened so far.
func (l *LocalParticipant) Streams() []*Stream {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Stream(nil), l.streams...)
}

func (l *LocalParticipant) PublishAudio(_ context.Context, f audio.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.PublishErr != nil {
		return l.PublishErr
	}
	l.published = append(l.published, f)
	return nil
}

// Published returns the audio frames published so far.
func (l *LocalParticipant) Published() []audio.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]audio.Frame(nil), l.published...)
}

// Stream buffers everything written to it.
type Stream struct {
	mu     sync.Mutex
	id     string
	buf    bytes.Buffer
	closed bool

	Opts room.StreamOptions

	// WriteErr, if non-nil, is returned by Write.
	WriteErr error
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("mock: write on closed stream")
	}
	if s.WriteErr != nil {
		return 0, s.WriteErr
	}
	return s.buf.Write(p)
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Bytes returns a copy of the data written.
func (s *Stream) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.buf.Bytes())
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ── Remote participant ───────────────────────────────────────────────────────

// RemoteParticipant is a scripted candidate.
type RemoteParticipant struct {
	identity string
	metadata string
	audioCh  chan audio.Frame
	once     sync.Once
}

// NewRemote returns a participant with a buffered audio channel.
func NewRemote(identity, metadata string) *RemoteParticipant {
	return &RemoteParticipant{identity: identity, metadata: metadata, audioCh: make(chan audio.Frame, 64)}
}

func (p *RemoteParticipant) Identity() string { return p.identity }

func (p *RemoteParticipant) Metadata() string { return p.metadata }

func (p *RemoteParticipant) Audio() <-chan audio.Frame { return p.audioCh }

// Speak queues a microphone frame.
func (p *RemoteParticipant) Speak(f audio.Frame) { p.audioCh <- f }

// Leave closes the audio channel.
func (p *RemoteParticipant) Leave() { p.once.Do(func() { close(p.audioCh) }) }
