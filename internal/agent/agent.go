// Package agent runs the interviewer: it binds an [Agent] definition to a
// live speech-to-speech model session and a candidate in a room.
//
// A [Session] moves candidate audio into the model, plays model audio back
// into the room, dispatches tool calls and keeps the conversation history
// that a reconfiguration carries into the next session.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/tools"
	"github.com/MrWong99/mockinterview/pkg/audio"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
	"github.com/MrWong99/mockinterview/pkg/room"
)

// ErrClosed is returned by Session methods after Close.
var ErrClosed = errors.New("agent: session closed")

// Agent is what the interviewer is: its instructions, its tools and what
// has been said so far.
type Agent struct {
	Instructions string
	Tools        *tools.Set
	ChatContext  ChatContext
}

// Turn is one finished utterance.
type Turn struct {
	// Role is s2s.RoleUser or s2s.RoleAssistant.
	Role  string
	Text  string
	Start time.Time
	End   time.Time
}

// SessionOptions carries the model settings and hooks for [Start].
type SessionOptions struct {
	Model           string
	Voice           string
	Temperature     float64
	MaxOutputTokens int
	Modalities      []string
	APIKey          string

	// VAD configures the detector session. Its sample rate is forced to the
	// model input rate. Zero value means vad.DefaultConfig.
	VAD vad.Config

	// OnTurn is called for every finished utterance, from the transcript
	// goroutine. It must not block for long.
	OnTurn func(Turn)

	// OnGoAway is called on its own goroutine when the provider announces
	// the model session will end soon.
	OnGoAway func()
}

// Session is a live interviewer session.
type Session struct {
	handle      s2s.SessionHandle
	local       room.LocalParticipant
	participant room.RemoteParticipant
	detector    vad.SessionHandle
	frameBytes  int
	onTurn      func(Turn)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	history []s2s.ContextItem
	pending map[string]*turnBuffer
	closed  bool

	userSpeechAt  atomic.Int64
	agentSpeaking atomic.Bool
	bargedIn      atomic.Bool

	ended     chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Start connects a model session for a and starts moving audio between it
// and participant. engine may be nil, in which case no barge-in detection
// runs. The session outlives ctx; call Close to end it.
func Start(ctx context.Context, p s2s.Provider, a *Agent, rm room.Room, participant room.RemoteParticipant, engine vad.Engine, opts SessionOptions) (*Session, error) {
	s := &Session{
		local:       rm.LocalParticipant(),
		participant: participant,
		onTurn:      opts.OnTurn,
		history:     a.ChatContext.Items(),
		pending:     make(map[string]*turnBuffer, 2),
		ended:       make(chan struct{}),
	}

	if engine != nil {
		cfg := opts.VAD
		if cfg == (vad.Config{}) {
			cfg = vad.DefaultConfig()
		}
		cfg.SampleRate = audio.Speech16k.SampleRate
		det, err := engine.NewSession(cfg)
		if err != nil {
			return nil, fmt.Errorf("agent: vad session: %w", err)
		}
		s.detector = det
		s.frameBytes = cfg.FrameBytes()
	}

	handle, err := p.Connect(ctx, s2s.SessionConfig{
		Model:           opts.Model,
		Voice:           opts.Voice,
		Instructions:    a.Instructions,
		Tools:           a.Tools.Definitions(),
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxOutputTokens,
		Modalities:      opts.Modalities,
		APIKey:          opts.APIKey,
		History:         a.ChatContext.Items(),
	})
	if err != nil {
		if s.detector != nil {
			_ = s.detector.Close()
		}
		return nil, fmt.Errorf("agent: connect: %w", err)
	}
	s.handle = handle
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if a.Tools.Len() > 0 {
		handle.OnToolCall(a.Tools.Handle)
	}
	handle.OnError(func(err error) {
		if errors.Is(err, s2s.ErrGoAway) {
			observe.Logger(s.ctx).Info("agent: model session ending", "err", err)
			if opts.OnGoAway != nil {
				go opts.OnGoAway()
			}
			return
		}
		observe.Logger(s.ctx).Warn("agent: model session error", "err", err)
	})

	s.wg.Add(3)
	go s.pumpInput()
	go s.pumpOutput()
	go s.pumpTranscripts()
	return s, nil
}

// GenerateReply asks the model to speak now, steered by instructions.
func (s *Session) GenerateReply(ctx context.Context, instructions string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := s.handle.GenerateReply(ctx, instructions); err != nil {
		return fmt.Errorf("agent: generate reply: %w", err)
	}
	return nil
}

// ChatContext returns the history so far, including utterances still in
// progress.
func (s *Session) ChatContext() (ChatContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ChatContext{}, ErrClosed
	}
	items := append([]s2s.ContextItem(nil), s.history...)
	for _, role := range []string{s2s.RoleUser, s2s.RoleAssistant} {
		if b := s.pending[role]; b != nil && b.text.Len() > 0 {
			items = append(items, s2s.ContextItem{Role: role, Content: strings.TrimSpace(b.text.String())})
		}
	}
	return NewChatContext(items...), nil
}

// Done is closed when the model session has ended, either through Close or
// because the provider dropped it.
func (s *Session) Done() <-chan struct{} { return s.ended }

// Err reports why the model session ended, if it failed.
func (s *Session) Err() error { return s.handle.Err() }

// Close ends the model session and waits for the pumps to stop. It is safe
// to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.closeErr = s.handle.Close()
		s.wg.Wait()
		if s.detector != nil {
			if err := s.detector.Close(); err != nil {
				slog.Debug("agent: vad close", "err", err)
			}
		}
		if s.closeErr != nil {
			s.closeErr = fmt.Errorf("agent: close: %w", s.closeErr)
		}
	})
	return s.closeErr
}
