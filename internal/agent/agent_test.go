package agent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/internal/agent"
	"github.com/MrWong99/mockinterview/internal/tools"
	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	s2smock "github.com/MrWong99/mockinterview/pkg/provider/s2s/mock"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
	vadmock "github.com/MrWong99/mockinterview/pkg/provider/vad/mock"
	roommock "github.com/MrWong99/mockinterview/pkg/room/mock"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type turnLog struct {
	mu    sync.Mutex
	turns []agent.Turn
}

func (l *turnLog) add(t agent.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, t)
}

func (l *turnLog) get() []agent.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]agent.Turn(nil), l.turns...)
}

type fixture struct {
	provider *s2smock.Provider
	vadSess  *vadmock.Session
	vadEng   *vadmock.Engine
	room     *roommock.Room
	cand     *roommock.RemoteParticipant
	turns    *turnLog
	session  *agent.Session
}

func (f *fixture) model() *s2smock.Session { return f.provider.LastSession() }

func start(t *testing.T, a *agent.Agent, vadEvents ...vad.Event) *fixture {
	t.Helper()
	f := &fixture{
		provider: &s2smock.Provider{},
		vadSess:  &vadmock.Session{Events: vadEvents, EventResult: vad.Event{Type: vad.Silence}},
		room:     roommock.NewRoom("r1"),
		turns:    &turnLog{},
	}
	f.vadEng = &vadmock.Engine{Session: f.vadSess}
	f.cand = f.room.AddRemote("candidate-1", "{}")

	s, err := agent.Start(context.Background(), f.provider, a, f.room, f.cand, f.vadEng, agent.SessionOptions{
		Model:       "gemini-live",
		Voice:       "Charon",
		Temperature: 0.8,
		Modalities:  []string{"AUDIO"},
		APIKey:      "k",
		VAD:         vad.Config{SampleRate: 48000, FrameSizeMs: 20, SpeechThreshold: 0.5, SilenceThreshold: 0.3},
		OnTurn:      f.turns.add,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.session = s
	t.Cleanup(func() { _ = s.Close() })
	return f
}

func TestStart_SessionConfig(t *testing.T) {
	t.Parallel()

	set, err := tools.NewSet(nil, tools.Tool{
		Definition: llm.ToolDefinition{Name: "ping"},
		Handler:    func(context.Context, string) (string, error) { return "pong", nil },
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	history := agent.NewChatContext(
		s2s.ContextItem{Role: s2s.RoleUser, Content: "hello"},
		s2s.ContextItem{Role: s2s.RoleAssistant, Content: "  "},
		s2s.ContextItem{Role: s2s.RoleAssistant, Content: "welcome"},
	)
	f := start(t, &agent.Agent{Instructions: "Be an HR interviewer.", Tools: set, ChatContext: history})

	calls := f.provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("Connect calls = %d, want 1", len(calls))
	}
	cfg := calls[0].Cfg
	if cfg.Instructions != "Be an HR interviewer." || cfg.Model != "gemini-live" || cfg.Voice != "Charon" || cfg.APIKey != "k" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "ping" {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if len(cfg.History) != 2 || cfg.History[1].Content != "welcome" {
		t.Errorf("history = %+v", cfg.History)
	}
	if got := f.vadEng.Configs[0].SampleRate; got != 16000 {
		t.Errorf("vad sample rate = %d, want 16000", got)
	}

	out, err := f.model().CallTool(context.Background(), "ping", "{}")
	if err != nil || out != "pong" {
		t.Errorf("CallTool = %q, %v", out, err)
	}
}

func TestStart_NoToolsNoHandler(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{Instructions: "x"})
	if f.model().Handler() != nil {
		t.Error("tool handler registered without tools")
	}
}

func TestStart_ConnectErrorClosesDetector(t *testing.T) {
	t.Parallel()

	vs := &vadmock.Session{}
	p := &s2smock.Provider{ConnectErr: errors.New("bad key")}
	_, err := agent.Start(context.Background(), p, &agent.Agent{}, roommock.NewRoom("r"), roommock.NewRemote("c", ""), &vadmock.Engine{Session: vs}, agent.SessionOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if vs.CloseCallCount != 1 {
		t.Errorf("vad Close calls = %d, want 1", vs.CloseCallCount)
	}
}

func TestSession_InputAudio(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{})

	// 20ms at 24 kHz arrives as 20ms at 16 kHz.
	f.cand.Speak(audio.Frame{Data: make([]byte, 960), Format: audio.Speech24k})
	eventually(t, "audio sent", func() bool { return len(f.model().Sent()) == 1 })
	if n := len(f.model().Sent()[0]); n != 640 {
		t.Errorf("sent %d bytes, want 640", n)
	}
	eventually(t, "vad frame", func() bool { return f.vadSess.FrameCount() == 1 })
}

func TestSession_OutputAudio(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{})
	f.model().EmitAudio([]byte{1, 2, 3, 4})
	eventually(t, "audio published", func() bool { return len(f.room.Local.Published()) == 1 })
	if got := f.room.Local.Published()[0]; got.Format != audio.Speech24k || len(got.Data) != 4 {
		t.Errorf("published = %+v", got)
	}
}

func TestSession_TranscriptsBecomeTurns(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{ChatContext: agent.NewChatContext(s2s.ContextItem{Role: s2s.RoleAssistant, Content: "earlier"})})
	m := f.model()

	m.EmitTranscript(s2s.Transcript{Role: s2s.RoleUser, Text: "I worked"})
	m.EmitTranscript(s2s.Transcript{Role: s2s.RoleUser, Text: " on payments."})
	m.EmitTranscript(s2s.Transcript{Role: s2s.RoleAssistant, Text: "Tell me "})
	m.EmitTranscript(s2s.Transcript{Role: s2s.RoleAssistant, Text: "more."})
	m.EmitTranscript(s2s.Transcript{Role: s2s.RoleAssistant, Final: true})

	eventually(t, "two turns", func() bool { return len(f.turns.get()) == 2 })
	turns := f.turns.get()
	if turns[0].Role != s2s.RoleUser || turns[0].Text != "I worked on payments." {
		t.Errorf("turn 0 = %+v", turns[0])
	}
	if turns[1].Role != s2s.RoleAssistant || turns[1].Text != "Tell me more." {
		t.Errorf("turn 1 = %+v", turns[1])
	}
	if turns[0].Start.IsZero() || turns[0].End.Before(turns[0].Start) {
		t.Errorf("turn 0 times = %v..%v", turns[0].Start, turns[0].End)
	}

	cc, err := f.session.ChatContext()
	if err != nil {
		t.Fatalf("ChatContext: %v", err)
	}
	items := cc.Items()
	if len(items) != 3 || items[0].Content != "earlier" || items[2].Content != "Tell me more." {
		t.Errorf("history = %+v", items)
	}
}

func TestSession_ChatContextIncludesPending(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{})
	f.model().EmitTranscript(s2s.Transcript{Role: s2s.RoleUser, Text: "half a sentence "})

	eventually(t, "pending text", func() bool {
		cc, _ := f.session.ChatContext()
		return cc.Len() == 1 && cc.Items()[0].Content == "half a sentence"
	})
	if n := len(f.turns.get()); n != 0 {
		t.Errorf("turns = %d, want 0 before the turn ends", n)
	}
}

func TestSession_BargeIn(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{}, vad.Event{Type: vad.SpeechStart, Probability: 0.9})
	m := f.model()

	m.EmitAudio([]byte{1, 1})
	eventually(t, "first chunk", func() bool { return len(f.room.Local.Published()) == 1 })

	f.cand.Speak(audio.Frame{Data: make([]byte, 640), Format: audio.Speech16k})
	eventually(t, "interrupt", func() bool { return m.Interrupts() == 1 })

	m.EmitAudio([]byte{2, 2})
	time.Sleep(30 * time.Millisecond)
	if n := len(f.room.Local.Published()); n != 1 {
		t.Fatalf("published %d chunks after barge-in, want 1", n)
	}

	m.EmitTranscript(s2s.Transcript{Role: s2s.RoleAssistant, Final: true})
	eventually(t, "playback resumes", func() bool {
		m.EmitAudio([]byte{3, 3})
		time.Sleep(5 * time.Millisecond)
		return len(f.room.Local.Published()) > 1
	})
}

func TestSession_GenerateReplyAndClose(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{})
	m := f.model()

	if err := f.session.GenerateReply(context.Background(), "Configuration updated."); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if r := m.Replies(); len(r) != 1 || r[0].Instructions != "Configuration updated." {
		t.Errorf("replies = %+v", r)
	}

	if err := f.session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.session.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !m.Closed() {
		t.Error("model session not closed")
	}
	select {
	case <-f.session.Done():
	default:
		t.Error("Done not closed")
	}
	if f.vadSess.CloseCallCount != 1 {
		t.Errorf("vad Close calls = %d, want 1", f.vadSess.CloseCallCount)
	}
	if _, err := f.session.ChatContext(); !errors.Is(err, agent.ErrClosed) {
		t.Errorf("ChatContext err = %v, want ErrClosed", err)
	}
	if err := f.session.GenerateReply(context.Background(), "x"); !errors.Is(err, agent.ErrClosed) {
		t.Errorf("GenerateReply err = %v, want ErrClosed", err)
	}
}

func TestSession_GenerateReplyError(t *testing.T) {
	t.Parallel()

	f := start(t, &agent.Agent{})
	f.model().GenerateReplyErr = errors.New("socket gone")
	if err := f.session.GenerateReply(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestChatContext(t *testing.T) {
	t.Parallel()

	base := agent.NewChatContext(s2s.ContextItem{Role: s2s.RoleUser, Content: "a"})
	grown := base.Append(s2s.ContextItem{Role: s2s.RoleAssistant, Content: "b"}, s2s.ContextItem{Role: s2s.RoleUser, Content: ""})
	if base.Len() != 1 || grown.Len() != 2 {
		t.Errorf("len base=%d grown=%d", base.Len(), grown.Len())
	}

	items := grown.Items()
	items[0].Content = "mutated"
	if grown.Items()[0].Content != "a" {
		t.Error("Items exposed internal storage")
	}

	if tr := grown.Truncate(1); tr.Len() != 1 || tr.Items()[0].Content != "b" {
		t.Errorf("Truncate(1) = %+v", tr.Items())
	}
	if grown.Truncate(0).Len() != 2 {
		t.Error("Truncate(0) changed history")
	}
}
