package wsroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/room"
)

var _ room.RemoteParticipant = (*client)(nil)

var errSendQueueFull = errors.New("wsroom: send queue full")

type outbound struct {
	typ  websocket.MessageType
	data []byte
}

// client is one connected candidate.
type client struct {
	conn     *websocket.Conn
	identity string

	mu       sync.RWMutex
	metadata string

	audioCh chan audio.Frame
	out     chan outbound
	done    chan struct{}
}

func newClient(conn *websocket.Conn, id Identity, buffer int) *client {
	return &client{
		conn:     conn,
		identity: id.Identity,
		metadata: id.Metadata,
		audioCh:  make(chan audio.Frame, 64),
		out:      make(chan outbound, buffer),
		done:     make(chan struct{}),
	}
}

func (c *client) Identity() string { return c.identity }

func (c *client) Metadata() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadata
}

func (c *client) Audio() <-chan audio.Frame { return c.audioCh }

// send queues an envelope, waiting for room in the queue.
func (c *client) send(ctx context.Context, typ websocket.MessageType, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("wsroom: encode %s: %w", env.Type, err)
	}
	select {
	case c.out <- outbound{typ: typ, data: data}:
		return nil
	case <-c.done:
		return room.ErrParticipantGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend queues raw data without waiting.
func (c *client) trySend(typ websocket.MessageType, data []byte) error {
	select {
	case <-c.done:
		return room.ErrParticipantGone
	default:
	}
	select {
	case c.out <- outbound{typ: typ, data: data}:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.conn.Write(wctx, m.typ, m.data)
			cancel()
			if err != nil {
				slog.Debug("wsroom: write failed", "identity", c.identity, "err", err)
				return
			}
		}
	}
}

// readLoop owns audioCh and closes it on return.
func (c *client) readLoop(ctx context.Context, rm *Room, in audio.Format) error {
	defer func() {
		close(c.done)
		close(c.audioCh)
	}()

	var dropped int
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if dropped > 0 {
				slog.Debug("wsroom: dropped input audio frames", "identity", c.identity, "frames", dropped)
			}
			return err
		}

		if typ == websocket.MessageBinary {
			select {
			case c.audioCh <- audio.Frame{Data: data, Format: in}:
			default:
				dropped++
			}
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Debug("wsroom: malformed envelope", "identity", c.identity, "err", err)
			continue
		}
		switch env.Type {
		case TypeRPCRequest:
			go rm.local.dispatch(ctx, c, env)
		case TypeMetadata:
			c.mu.Lock()
			c.metadata = env.Metadata
			c.mu.Unlock()
		default:
			slog.Debug("wsroom: ignoring envelope", "identity", c.identity, "type", env.Type)
		}
	}
}
