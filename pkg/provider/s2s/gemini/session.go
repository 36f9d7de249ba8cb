package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
)

const (
	keepaliveInterval = 20 * time.Second
	keepaliveTimeout  = 5 * time.Second
)

// session is one Live websocket. receiveLoop owns audio and transcripts and
// closes both when it returns.
type session struct {
	conn        *websocket.Conn
	audio       chan []byte
	transcripts chan s2s.Transcript

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	onTool    s2s.ToolCallHandler
	onError   func(error)
	err       error
	closed    bool
	goingAway bool
	inflight  sync.WaitGroup

	drained sync.Once
}

func newSession(conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		conn:        conn,
		audio:       make(chan []byte, 64),
		transcripts: make(chan s2s.Transcript, 32),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *session) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gemini: encode %T: %w", v, err)
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

// sendTurns writes the non-empty items as one clientContent message. With
// nothing to send and no turn to complete it writes nothing.
func (s *session) sendTurns(items []s2s.ContextItem, complete bool) error {
	var msg clientContentMessage
	for _, it := range items {
		if it.Content != "" {
			msg.ClientContent.Turns = append(msg.ClientContent.Turns,
				content{Role: liveRole(it.Role), Parts: []part{{Text: it.Content}}})
		}
	}
	if len(msg.ClientContent.Turns) == 0 && !complete {
		return nil
	}
	if msg.ClientContent.Turns == nil {
		msg.ClientContent.Turns = []content{}
	}
	msg.ClientContent.TurnComplete = complete
	return s.send(msg)
}

func (s *session) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// ── Receiving ────────────────────────────────────────────────────────────────

// awaitSetup reads until the server acknowledges the setup message. Other
// messages sent before that are dropped.
func (s *session) awaitSetup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("waiting for setupComplete: %w", err)
		}
		var msg serverMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		switch {
		case msg.Error != nil:
			return fmt.Errorf("%s (code %d)", cmpOr(msg.Error.Message, "unknown error"), msg.Error.Code)
		case msg.SetupComplete != nil:
			return nil
		}
	}
}

func (s *session) receiveLoop() {
	defer s.drained.Do(func() {
		close(s.audio)
		close(s.transcripts)
	})

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.fail(fmt.Errorf("gemini: read: %w", err))
			}
			return
		}
		var msg serverMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if !s.dispatch(&msg) {
			return
		}
	}
}

// dispatch handles one server message. It reports false once the session
// context is done.
func (s *session) dispatch(msg *serverMessage) bool {
	switch {
	case msg.Error != nil:
		text := cmpOr(msg.Error.Message, "unknown error")
		s.report(fmt.Errorf("gemini: %s (code %d)", text, msg.Error.Code))
	case msg.GoAway != nil:
		s.mu.Lock()
		first := !s.goingAway
		s.goingAway = true
		s.mu.Unlock()
		if first {
			s.report(fmt.Errorf("gemini: %w (time left %s)", s2s.ErrGoAway, cmpOr(msg.GoAway.TimeLeft, "unknown")))
		}
	case msg.ToolCall != nil:
		s.startToolCalls(msg.ToolCall.FunctionCalls)
	}
	if msg.ServerContent != nil {
		return s.deliver(msg.ServerContent)
	}
	return true
}

func (s *session) report(err error) {
	s.mu.Lock()
	h := s.onError
	s.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// deliver forwards candidate and interviewer speech in arrival order: the
// candidate's transcription, then the interviewer's audio and text, then
// the end-of-turn marker.
func (s *session) deliver(sc *serverContent) bool {
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		if !s.transcript(s2s.RoleUser, sc.InputTranscription.Text, false) {
			return false
		}
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if !s.deliverPart(p) {
				return false
			}
		}
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		if !s.transcript(s2s.RoleAssistant, sc.OutputTranscription.Text, false) {
			return false
		}
	}
	if sc.TurnComplete || sc.Interrupted {
		return s.transcript(s2s.RoleAssistant, "", true)
	}
	return true
}

func (s *session) deliverPart(p part) bool {
	if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
		pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
		if err == nil && len(pcm) > 0 {
			select {
			case s.audio <- pcm:
			case <-s.ctx.Done():
				return false
			}
		}
	}
	if p.Text != "" && !p.Thought {
		return s.transcript(s2s.RoleAssistant, p.Text, false)
	}
	return true
}

func (s *session) transcript(role, text string, final bool) bool {
	select {
	case s.transcripts <- s2s.Transcript{Role: role, Text: text, Final: final, Timestamp: time.Now()}:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// startToolCalls runs each call on its own goroutine so an image render
// never blocks the candidate's audio.
func (s *session) startToolCalls(calls []functionCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	h := s.onTool
	for _, fc := range calls {
		s.inflight.Go(func() { s.answer(h, fc) })
	}
}

func (s *session) answer(h s2s.ToolCallHandler, fc functionCall) {
	var (
		out string
		err error
	)
	if h == nil {
		err = fmt.Errorf("no handler for tool %s", fc.Name)
	} else {
		args, merr := json.Marshal(fc.Args)
		if merr != nil || fc.Args == nil {
			args = []byte("{}")
		}
		out, err = h(s.ctx, fc.Name, string(args))
	}

	var msg toolResponseMessage
	msg.ToolResponse.FunctionResponses = []functionResponse{{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: functionResult(out, err),
	}}
	_ = s.send(msg)
}

// keepaliveLoop pings while the candidate is silent so proxies keep the
// connection open.
func (s *session) keepaliveLoop() {
	t := time.NewTicker(keepaliveInterval)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(s.ctx, keepaliveTimeout)
			_ = s.conn.Ping(ctx)
			cancel()
		}
	}
}

func (s *session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// ── s2s.SessionHandle ────────────────────────────────────────────────────────

// SendAudio forwards one chunk of candidate PCM (16 kHz s16le mono).
func (s *session) SendAudio(chunk []byte) error {
	if err := s.open(); err != nil {
		return err
	}
	var msg realtimeInputMessage
	msg.RealtimeInput.MediaChunks = []blob{{
		MIMEType: inputAudioMIME,
		Data:     base64.StdEncoding.EncodeToString(chunk),
	}}
	return s.send(msg)
}

func (s *session) Audio() <-chan []byte               { return s.audio }
func (s *session) Transcripts() <-chan s2s.Transcript { return s.transcripts }

func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) OnError(h func(error)) {
	s.mu.Lock()
	s.onError = h
	s.mu.Unlock()
}

func (s *session) OnToolCall(h s2s.ToolCallHandler) {
	s.mu.Lock()
	s.onTool = h
	s.mu.Unlock()
}

// GenerateReply sends instructions as a completed user turn so the
// interviewer answers right away.
func (s *session) GenerateReply(ctx context.Context, instructions string) error {
	if err := s.open(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.sendTurns([]s2s.ContextItem{{Role: s2s.RoleUser, Content: instructions}}, true)
}

// Interrupt is not part of the Live protocol. The server notices barge-in
// in the candidate's audio and reports it as an interrupted turn.
func (s *session) Interrupt() error {
	return errors.New("gemini: interrupt not supported")
}

// Close ends the session and waits for running tool calls. Later calls are
// no-ops.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "session closed")
	s.inflight.Wait()
	return nil
}
