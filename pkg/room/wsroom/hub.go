// Package wsroom implements [room.Room] on top of plain websockets so the
// interviewer can be reached without a media server.
//
// Each candidate connects with an authenticated HTTP upgrade. The hub groups
// connections by room name and exposes, per room, a local participant that
// the agent drives: RPC handlers, byte streams and audio playback. PCM audio
// travels in binary frames; everything else is a JSON [Envelope].
package wsroom

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/room"
)

// Identity is the authenticated identity of a connecting client.
type Identity struct {
	Room     string
	Identity string
	Metadata string
}

// Authenticator resolves the identity of an upgrade request.
type Authenticator func(r *http.Request) (Identity, error)

// Hub is an http.Handler accepting room connections.
type Hub struct {
	auth   Authenticator
	onJoin room.JoinHandler

	agentIdentity string
	input         audio.Format
	output        audio.Format
	rpcTimeout    time.Duration
	chunkSize     int
	sendBuffer    int
	origins       []string

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

// Option configures a [Hub].
type Option func(*Hub)

// WithAgentIdentity sets the identity of the local participant. Default: "agent".
func WithAgentIdentity(id string) Option { return func(h *Hub) { h.agentIdentity = id } }

// WithInputFormat sets the PCM format clients send. Default: 16 kHz mono.
func WithInputFormat(f audio.Format) Option { return func(h *Hub) { h.input = f } }

// WithOutputFormat sets the PCM format clients receive. Default: 24 kHz mono.
func WithOutputFormat(f audio.Format) Option { return func(h *Hub) { h.output = f } }

// WithRPCTimeout sets the response timeout used when a request carries none.
// Default: 10s.
func WithRPCTimeout(d time.Duration) Option { return func(h *Hub) { h.rpcTimeout = d } }

// WithChunkSize sets the maximum payload of one stream_chunk. Default: 15000.
func WithChunkSize(n int) Option { return func(h *Hub) { h.chunkSize = n } }

// WithOriginPatterns allows cross-origin upgrades from the given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// New returns a Hub. onJoin runs on its own goroutine for every client.
func New(auth Authenticator, onJoin room.JoinHandler, opts ...Option) *Hub {
	h := &Hub{
		auth:          auth,
		onJoin:        onJoin,
		agentIdentity: "agent",
		input:         audio.Speech16k,
		output:        audio.Speech24k,
		rpcTimeout:    10 * time.Second,
		chunkSize:     15000,
		sendBuffer:    256,
		rooms:         make(map[string]*Room),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

var errHubClosed = errors.New("wsroom: hub closed")

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if id.Room == "" || id.Identity == "" {
		http.Error(w, "room and identity required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("wsroom: accept failed", "err", err)
		return
	}
	conn.SetReadLimit(1 << 20)

	rm, err := h.room(id.Room)
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(conn, id, h.sendBuffer)
	if !rm.add(c) {
		conn.Close(websocket.StatusPolicyViolation, "identity already connected")
		h.release(rm)
		return
	}
	defer func() {
		rm.remove(c)
		h.release(rm)
	}()

	go c.writeLoop(ctx)
	_ = c.send(ctx, websocket.MessageText, Envelope{
		Type:             TypeWelcome,
		Room:             id.Room,
		Identity:         id.Identity,
		AgentIdentity:    h.agentIdentity,
		InputSampleRate:  h.input.SampleRate,
		OutputSampleRate: h.output.SampleRate,
	})

	slog.Info("wsroom: participant joined", "room", id.Room, "identity", id.Identity)
	if h.onJoin != nil {
		go h.onJoin(ctx, rm, c)
	}

	err = c.readLoop(ctx, rm, h.input)
	cancel()
	conn.Close(websocket.StatusNormalClosure, "")

	slog.Info("wsroom: participant left", "room", id.Room, "identity", id.Identity, "reason", closeReason(err))
}

// room returns the named room, creating it when absent. Every successful
// call must be paired with release.
func (h *Hub) room(name string) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errHubClosed
	}
	rm, ok := h.rooms[name]
	if !ok {
		rm = newRoom(name, h)
		h.rooms[name] = rm
	}
	rm.refs++
	return rm, nil
}

func (h *Hub) release(rm *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm.refs--
	if rm.refs == 0 && h.rooms[rm.name] == rm {
		delete(h.rooms, rm.name)
	}
}

// Room returns the live room with the given name.
func (h *Hub) Room(name string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[name]
	return rm, ok
}

// Close disconnects every client. Later upgrades are refused.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	rooms := make([]*Room, 0, len(h.rooms))
	for _, rm := range h.rooms {
		rooms = append(rooms, rm)
	}
	h.mu.Unlock()

	for _, rm := range rooms {
		for _, c := range rm.clients() {
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
	}
	return nil
}

func closeReason(err error) string {
	if err == nil {
		return "context done"
	}
	if s := websocket.CloseStatus(err); s != -1 {
		return s.String()
	}
	return err.Error()
}
