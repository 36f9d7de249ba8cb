// Package mock provides test doubles for the s2s package interfaces.
//
// Use Provider to verify Connect calls and feed controlled sessions. Use
// Session to drive the audio and transcript streams and inspect which methods
// the caller invoked.
//
//	p := &mock.Provider{}
//	handle, _ := p.Connect(ctx, cfg)
//	sess := p.LastSession()
//	sess.EmitTranscript(s2s.Transcript{Role: s2s.RoleUser, Text: "hi"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
)

var (
	_ s2s.Provider      = (*Provider)(nil)
	_ s2s.SessionHandle = (*Session)(nil)
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	Ctx context.Context
	Cfg s2s.SessionConfig
}

// Provider is a mock implementation of s2s.Provider.
type Provider struct {
	mu sync.Mutex

	// Session, when non-nil, is returned by every Connect. Otherwise each
	// Connect returns a fresh session from NewSession.
	Session s2s.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ConnectFunc, when set, takes precedence over Session and ConnectErr.
	ConnectFunc func(ctx context.Context, cfg s2s.SessionConfig) (s2s.SessionHandle, error)

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	// Sessions lists the sessions Connect created, in order.
	Sessions []*Session
}

// Connect records the call and returns a session.
func (p *Provider) Connect(ctx context.Context, cfg s2s.SessionConfig) (s2s.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectFunc != nil {
		return p.ConnectFunc(ctx, cfg)
	}
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	sess := NewSession()
	p.Sessions = append(p.Sessions, sess)
	return sess, nil
}

// Calls returns a snapshot of the recorded Connect calls.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

// LastSession returns the most recently created session, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Sessions) == 0 {
		return nil
	}
	return p.Sessions[len(p.Sessions)-1]
}

// ── Session ───────────────────────────────────────────────────────────────────

// GenerateReplyCall records a single invocation of GenerateReply.
type GenerateReplyCall struct {
	Instructions string
}

// Session is a mock implementation of s2s.SessionHandle. Close closes the
// output channels exactly once, so consumers ranging over them terminate.
type Session struct {
	mu sync.Mutex

	audioCh       chan []byte
	transcriptsCh chan s2s.Transcript
	closeOnce     sync.Once

	toolCallHandler s2s.ToolCallHandler
	errorHandler    func(error)

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// GenerateReplyErr, if non-nil, is returned by every GenerateReply call.
	GenerateReplyErr error

	// InterruptErr, if non-nil, is returned by every Interrupt call.
	InterruptErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ErrVal is returned by Err.
	ErrVal error

	SendAudioCalls     [][]byte
	GenerateReplyCalls []GenerateReplyCall
	InterruptCallCount int
	CloseCallCount     int
}

// NewSession returns a Session with buffered output channels.
func NewSession() *Session {
	return &Session{
		audioCh:       make(chan []byte, 64),
		transcriptsCh: make(chan s2s.Transcript, 64),
	}
}

// EmitAudio pushes chunk onto the Audio channel.
func (s *Session) EmitAudio(chunk []byte) { s.audioCh <- chunk }

// EmitTranscript pushes t onto the Transcripts channel.
func (s *Session) EmitTranscript(t s2s.Transcript) { s.transcriptsCh <- t }

// EmitError invokes the registered error handler, if any.
func (s *Session) EmitError(err error) {
	s.mu.Lock()
	h := s.errorHandler
	s.mu.Unlock()
	if h != nil {
		h(err)
	}
}

// CallTool invokes the registered tool handler as the model would.
func (s *Session) CallTool(ctx context.Context, name, args string) (string, error) {
	s.mu.Lock()
	h := s.toolCallHandler
	s.mu.Unlock()
	if h == nil {
		return "", nil
	}
	return h(ctx, name, args)
}

// Handler returns the currently registered ToolCallHandler.
func (s *Session) Handler() s2s.ToolCallHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCallHandler
}

// SendAudio records a copy of chunk and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = append(s.SendAudioCalls, append([]byte(nil), chunk...))
	return s.SendAudioErr
}

func (s *Session) Audio() <-chan []byte { return s.audioCh }

func (s *Session) Transcripts() <-chan s2s.Transcript { return s.transcriptsCh }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

func (s *Session) OnToolCall(handler s2s.ToolCallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCallHandler = handler
}

func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
}

// GenerateReply records the call and returns GenerateReplyErr.
func (s *Session) GenerateReply(_ context.Context, instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GenerateReplyCalls = append(s.GenerateReplyCalls, GenerateReplyCall{Instructions: instructions})
	return s.GenerateReplyErr
}

// Interrupt records the call and returns InterruptErr.
func (s *Session) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InterruptCallCount++
	return s.InterruptErr
}

// Close records the call, closes the output channels once and returns
// CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	err := s.CloseErr
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.audioCh)
		close(s.transcriptsCh)
	})
	return err
}

// Closed reports whether Close has been called at least once.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount > 0
}

// Replies returns a snapshot of the recorded GenerateReply calls.
func (s *Session) Replies() []GenerateReplyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GenerateReplyCall(nil), s.GenerateReplyCalls...)
}

// Sent returns a snapshot of the recorded SendAudio chunks.
func (s *Session) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.SendAudioCalls...)
}

// Interrupts returns the number of Interrupt calls so far.
func (s *Session) Interrupts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InterruptCallCount
}
