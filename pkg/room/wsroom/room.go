package wsroom

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/room"
)

var (
	_ room.Room             = (*Room)(nil)
	_ room.LocalParticipant = (*local)(nil)
	_ room.ByteStreamWriter = (*streamWriter)(nil)
)

// Room is a named group of clients sharing one agent participant.
type Room struct {
	name  string
	local *local
	refs  int // guarded by Hub.mu

	mu    sync.RWMutex
	conns map[string]*client
	order []string
}

func newRoom(name string, h *Hub) *Room {
	rm := &Room{name: name, conns: make(map[string]*client)}
	rm.local = &local{
		room:       rm,
		identity:   h.agentIdentity,
		handlers:   make(map[string]room.RPCHandler),
		rpcTimeout: h.rpcTimeout,
		chunkSize:  h.chunkSize,
		conv:       audio.Converter{Target: h.output},
	}
	return rm
}

func (r *Room) Name() string { return r.name }

func (r *Room) LocalParticipant() room.LocalParticipant { return r.local }

func (r *Room) RemoteParticipants() []room.RemoteParticipant {
	cs := r.clients()
	out := make([]room.RemoteParticipant, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}

func (r *Room) add(c *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.conns[c.identity]; dup {
		return false
	}
	r.conns[c.identity] = c
	r.order = append(r.order, c.identity)
	return true
}

func (r *Room) remove(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c.identity] == c {
		delete(r.conns, c.identity)
		r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == c.identity })
	}
}

func (r *Room) clients() []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.conns[id])
	}
	return out
}

func (r *Room) client(identity string) (*client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[identity]
	return c, ok
}

// ── Local participant ────────────────────────────────────────────────────────

type local struct {
	room       *Room
	identity   string
	rpcTimeout time.Duration
	chunkSize  int

	mu       sync.RWMutex
	handlers map[string]room.RPCHandler

	convMu sync.Mutex
	conv   audio.Converter
}

func (l *local) Identity() string { return l.identity }

func (l *local) RegisterRPCMethod(method string, h room.RPCHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[method] = h
}

func (l *local) UnregisterRPCMethod(method string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, method)
}

func (l *local) dispatch(ctx context.Context, c *client, req Envelope) {
	l.mu.RLock()
	h, ok := l.handlers[req.Method]
	l.mu.RUnlock()

	resp := Envelope{Type: TypeRPCResponse, ID: req.ID}
	if !ok {
		resp.Error = fmt.Sprintf("unsupported method %q", req.Method)
		_ = c.send(ctx, websocket.MessageText, resp)
		return
	}

	timeout := l.rpcTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := h(hctx, room.RPCInvocation{
		RequestID:       req.ID,
		CallerIdentity:  c.identity,
		Payload:         req.Payload,
		ResponseTimeout: timeout,
	})
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Payload = payload
	}
	_ = c.send(ctx, websocket.MessageText, resp)
}

func (l *local) StreamBytes(ctx context.Context, opts room.StreamOptions) (room.ByteStreamWriter, error) {
	var targets []*client
	if len(opts.DestinationIdentities) == 0 {
		targets = l.room.clients()
	} else {
		for _, id := range opts.DestinationIdentities {
			if c, ok := l.room.client(id); ok {
				targets = append(targets, c)
			}
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("wsroom: stream %s: %w", opts.Name, room.ErrParticipantGone)
	}

	w := &streamWriter{ctx: ctx, id: uuid.NewString(), targets: targets, chunkSize: l.chunkSize}
	if err := w.broadcast(Envelope{
		Type:       TypeStreamHeader,
		ID:         w.id,
		Topic:      opts.Topic,
		Name:       opts.Name,
		MimeType:   opts.MimeType,
		Attributes: opts.Attributes,
		TotalSize:  opts.TotalSize,
	}); err != nil {
		return nil, fmt.Errorf("wsroom: stream %s: header: %w", opts.Name, err)
	}
	return w, nil
}

func (l *local) PublishAudio(_ context.Context, f audio.Frame) error {
	l.convMu.Lock()
	f = l.conv.Convert(f)
	l.convMu.Unlock()
	if len(f.Data) == 0 {
		return nil
	}

	var errs []error
	for _, c := range l.room.clients() {
		if err := c.trySend(websocket.MessageBinary, f.Data); err != nil && !errors.Is(err, errSendQueueFull) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ── Byte streams ─────────────────────────────────────────────────────────────

type streamWriter struct {
	ctx       context.Context
	id        string
	targets   []*client
	chunkSize int

	mu     sync.Mutex
	index  int
	closed bool
}

func (w *streamWriter) ID() string { return w.id }

// broadcast delivers env to every target. It fails only when no target
// accepted it.
func (w *streamWriter) broadcast(env Envelope) error {
	var errs []error
	for _, c := range w.targets {
		if err := c.send(w.ctx, websocket.MessageText, env); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(w.targets) {
		return errors.Join(errs...)
	}
	return nil
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, errors.New("wsroom: write on closed stream")
	}
	written := 0
	for len(p) > 0 {
		n := min(len(p), w.chunkSize)
		if err := w.broadcast(Envelope{Type: TypeStreamChunk, ID: w.id, Index: w.index, Data: p[:n]}); err != nil {
			return written, err
		}
		w.index++
		written += n
		p = p[n:]
	}
	return written, nil
}

func (w *streamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.broadcast(Envelope{Type: TypeStreamTrailer, ID: w.id})
}
