package wsroom_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/room"
	"github.com/MrWong99/mockinterview/pkg/room/wsroom"
)

// queryAuth accepts "?room=<r>&identity=<i>&metadata=<m>" and rejects
// requests without identity.
func queryAuth(r *http.Request) (wsroom.Identity, error) {
	q := r.URL.Query()
	if q.Get("identity") == "" {
		return wsroom.Identity{}, errors.New("no identity")
	}
	return wsroom.Identity{Room: q.Get("room"), Identity: q.Get("identity"), Metadata: q.Get("metadata")}, nil
}

type joined struct {
	ctx  context.Context
	room room.Room
	p    room.RemoteParticipant
}

func startHub(t *testing.T, opts ...wsroom.Option) (*httptest.Server, <-chan joined) {
	t.Helper()
	joins := make(chan joined, 8)
	hub := wsroom.New(queryAuth, func(ctx context.Context, r room.Room, p room.RemoteParticipant) {
		joins <- joined{ctx: ctx, room: r, p: p}
	}, opts...)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return srv, joins
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/?"+query, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsroom.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		var env wsroom.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return env
	}
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, env wsroom.Envelope) {
	t.Helper()
	data, _ := json.Marshal(env)
	if err := conn.Write(context.Background(), websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitJoin(t *testing.T, joins <-chan joined) joined {
	t.Helper()
	select {
	case j := <-joins:
		return j
	case <-time.After(3 * time.Second):
		t.Fatal("no join")
		return joined{}
	}
}

func TestHub_Unauthorized(t *testing.T) {
	t.Parallel()
	srv, _ := startHub(t)

	resp, err := http.Get(srv.URL + "/?room=r1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHub_JoinAndWelcome(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t, wsroom.WithAgentIdentity("interviewer"))

	conn := dial(t, srv, "room=r1&identity=candidate-ab12c&metadata="+url.QueryEscape(`{"interviewer_role":"HR"}`))
	welcome := readEnvelope(t, conn)
	if welcome.Type != wsroom.TypeWelcome || welcome.Room != "r1" || welcome.Identity != "candidate-ab12c" {
		t.Errorf("welcome = %+v", welcome)
	}
	if welcome.AgentIdentity != "interviewer" || welcome.InputSampleRate != 16000 || welcome.OutputSampleRate != 24000 {
		t.Errorf("welcome formats = %+v", welcome)
	}

	j := waitJoin(t, joins)
	if j.room.Name() != "r1" {
		t.Errorf("room = %q", j.room.Name())
	}
	if j.p.Identity() != "candidate-ab12c" || j.p.Metadata() != `{"interviewer_role":"HR"}` {
		t.Errorf("participant = %q %q", j.p.Identity(), j.p.Metadata())
	}
	if j.room.LocalParticipant().Identity() != "interviewer" {
		t.Errorf("local identity = %q", j.room.LocalParticipant().Identity())
	}
	if n := len(j.room.RemoteParticipants()); n != 1 {
		t.Errorf("remote participants = %d, want 1", n)
	}
}

func TestHub_MetadataUpdate(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t)

	conn := dial(t, srv, "room=r1&identity=c1&metadata=old")
	readEnvelope(t, conn)
	j := waitJoin(t, joins)

	writeEnvelope(t, conn, wsroom.Envelope{Type: wsroom.TypeMetadata, Metadata: "new"})
	deadline := time.Now().Add(2 * time.Second)
	for j.p.Metadata() != "new" {
		if time.Now().After(deadline) {
			t.Fatalf("metadata = %q, want new", j.p.Metadata())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_RPC(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t)

	conn := dial(t, srv, "room=r1&identity=c1")
	readEnvelope(t, conn)
	j := waitJoin(t, joins)

	var (
		mu  sync.Mutex
		got room.RPCInvocation
	)
	j.room.LocalParticipant().RegisterRPCMethod("pg.updateConfig", func(_ context.Context, inv room.RPCInvocation) (string, error) {
		mu.Lock()
		got = inv
		mu.Unlock()
		return `{"changed":true}`, nil
	})
	j.room.LocalParticipant().RegisterRPCMethod("fails", func(context.Context, room.RPCInvocation) (string, error) {
		return "", errors.New("nope")
	})

	writeEnvelope(t, conn, wsroom.Envelope{Type: wsroom.TypeRPCRequest, ID: "req-1", Method: "pg.updateConfig", Payload: `{"a":1}`, TimeoutMs: 5000})
	resp := readEnvelope(t, conn)
	if resp.Type != wsroom.TypeRPCResponse || resp.ID != "req-1" || resp.Payload != `{"changed":true}` || resp.Error != "" {
		t.Errorf("response = %+v", resp)
	}
	mu.Lock()
	if got.CallerIdentity != "c1" || got.Payload != `{"a":1}` || got.RequestID != "req-1" || got.ResponseTimeout != 5*time.Second {
		t.Errorf("invocation = %+v", got)
	}
	mu.Unlock()

	writeEnvelope(t, conn, wsroom.Envelope{Type: wsroom.TypeRPCRequest, ID: "req-2", Method: "fails"})
	if resp := readEnvelope(t, conn); resp.ID != "req-2" || resp.Error != "nope" {
		t.Errorf("error response = %+v", resp)
	}

	j.room.LocalParticipant().UnregisterRPCMethod("pg.updateConfig")
	writeEnvelope(t, conn, wsroom.Envelope{Type: wsroom.TypeRPCRequest, ID: "req-3", Method: "pg.updateConfig"})
	if resp := readEnvelope(t, conn); resp.ID != "req-3" || !strings.Contains(resp.Error, "unsupported method") {
		t.Errorf("unregistered response = %+v", resp)
	}
}

func TestHub_StreamBytes(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t, wsroom.WithChunkSize(4))

	target := dial(t, srv, "room=r1&identity=target")
	readEnvelope(t, target)
	j := waitJoin(t, joins)

	other := dial(t, srv, "room=r1&identity=other")
	readEnvelope(t, other)
	waitJoin(t, joins)

	w, err := j.room.LocalParticipant().StreamBytes(context.Background(), room.StreamOptions{
		Topic:                 "nano_banana_image",
		Name:                  "generated_image.jpg",
		MimeType:              "image/jpeg",
		Attributes:            map[string]string{"prompt": "cat", "type": "nano_banana_image"},
		DestinationIdentities: []string{"target"},
	})
	if err != nil {
		t.Fatalf("StreamBytes: %v", err)
	}
	if n, err := w.Write([]byte("0123456789")); err != nil || n != 10 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	hdr := readEnvelope(t, target)
	if hdr.Type != wsroom.TypeStreamHeader || hdr.ID != w.ID() || hdr.Topic != "nano_banana_image" ||
		hdr.Name != "generated_image.jpg" || hdr.MimeType != "image/jpeg" || hdr.Attributes["prompt"] != "cat" {
		t.Errorf("header = %+v", hdr)
	}
	var body []byte
	for i := range 3 {
		c := readEnvelope(t, target)
		if c.Type != wsroom.TypeStreamChunk || c.Index != i {
			t.Fatalf("chunk %d = %+v", i, c)
		}
		body = append(body, c.Data...)
	}
	if string(body) != "0123456789" {
		t.Errorf("body = %q", body)
	}
	if tr := readEnvelope(t, target); tr.Type != wsroom.TypeStreamTrailer || tr.ID != w.ID() {
		t.Errorf("trailer = %+v", tr)
	}

	// The non-destination client only ever sees traffic addressed to all.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, _, err := other.Read(ctx); err == nil {
		t.Error("non-destination client received stream data")
	}
}

func TestHub_StreamBytes_NoTarget(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t)

	conn := dial(t, srv, "room=r1&identity=c1")
	readEnvelope(t, conn)
	j := waitJoin(t, joins)

	_, err := j.room.LocalParticipant().StreamBytes(context.Background(), room.StreamOptions{
		Name: "x", DestinationIdentities: []string{"ghost"},
	})
	if !errors.Is(err, room.ErrParticipantGone) {
		t.Errorf("err = %v, want ErrParticipantGone", err)
	}
}

func TestHub_Audio(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t, wsroom.WithOutputFormat(audio.Speech16k))

	conn := dial(t, srv, "room=r1&identity=c1")
	readEnvelope(t, conn)
	j := waitJoin(t, joins)

	if err := conn.Write(context.Background(), websocket.MessageBinary, make([]byte, 640)); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	select {
	case f := <-j.p.Audio():
		if len(f.Data) != 640 || f.Format != audio.Speech16k {
			t.Errorf("input frame = %d bytes %v", len(f.Data), f.Format)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no input audio")
	}

	// 20ms at 24 kHz is resampled to 20ms at 16 kHz.
	if err := j.room.LocalParticipant().PublishAudio(context.Background(), audio.Frame{Data: make([]byte, 960), Format: audio.Speech24k}); err != nil {
		t.Fatalf("PublishAudio: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if typ != websocket.MessageBinary || len(data) != 640 {
		t.Errorf("output = %v %d bytes, want binary 640", typ, len(data))
	}
}

func TestHub_DisconnectEndsParticipant(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t)

	conn := dial(t, srv, "room=r1&identity=c1")
	readEnvelope(t, conn)
	j := waitJoin(t, joins)

	conn.Close(websocket.StatusNormalClosure, "bye")

	select {
	case <-j.ctx.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("join context not cancelled")
	}
	select {
	case _, ok := <-j.p.Audio():
		if ok {
			t.Error("unexpected audio frame")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("audio channel not closed")
	}
}

func TestHub_DuplicateIdentityRejected(t *testing.T) {
	t.Parallel()
	srv, joins := startHub(t)

	first := dial(t, srv, "room=r1&identity=c1")
	readEnvelope(t, first)
	waitJoin(t, joins)

	second := dial(t, srv, "room=r1&identity=c1")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, _, err := second.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Errorf("close status = %v, want policy violation", websocket.CloseStatus(err))
	}
}
