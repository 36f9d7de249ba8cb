// Package gemini connects interviewer sessions to the Gemini Live API.
//
// Each session is one BidiGenerateContent WebSocket. The candidate's audio
// goes up as base64 PCM in realtimeInput messages; the interviewer's voice,
// both transcriptions and function calls come back as serverContent and
// toolCall messages. Function calls are answered through the registered
// s2s.ToolCallHandler.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
)

var (
	_ s2s.Provider      = (*Provider)(nil)
	_ s2s.SessionHandle = (*session)(nil)
)

// ErrSessionClosed is returned by session methods after Close.
var ErrSessionClosed = errors.New("gemini: session closed")

const (
	defaultModel   = "gemini-2.5-flash-native-audio-preview-12-2025"
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"
	bidiPath       = "/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// Model audio chunks and image tool responses exceed the 32 KiB
	// websocket default.
	readLimit = 8 << 20

	// setupTimeout bounds the wait for setupComplete.
	setupTimeout = 15 * time.Second
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel sets the model used when a session names none.
func WithModel(model string) Option { return func(p *Provider) { p.model = model } }

// WithBaseURL replaces the Live endpoint root, e.g. with a local fake.
func WithBaseURL(u string) Option { return func(p *Provider) { p.baseURL = u } }

// WithHTTPClient sets the client used for the websocket handshake.
func WithHTTPClient(c *http.Client) Option { return func(p *Provider) { p.httpClient = c } }

// Provider opens Gemini Live sessions.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New returns a Provider. apiKey may be empty when every candidate brings
// their own key in the session config.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{apiKey: apiKey, model: defaultModel, baseURL: defaultBaseURL}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Connect dials the Live endpoint, sends the setup built from cfg, waits for
// the server to acknowledge it and seeds cfg.History before returning.
func (p *Provider) Connect(ctx context.Context, cfg s2s.SessionConfig) (s2s.SessionHandle, error) {
	key := cmpOr(cfg.APIKey, p.apiKey)
	if key == "" {
		return nil, errors.New("gemini: no API key configured")
	}
	model := cmpOr(cfg.Model, p.model)

	endpoint := p.baseURL + bidiPath + "?key=" + url.QueryEscape(key)
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: p.httpClient,
		HTTPHeader: http.Header{"Content-Type": {"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: dial %s: %w", model, err)
	}
	conn.SetReadLimit(readLimit)

	sess := newSession(conn)
	abort := func(stage string, err error) (s2s.SessionHandle, error) {
		sess.cancel()
		conn.Close(websocket.StatusInternalError, stage+" failed")
		return nil, fmt.Errorf("gemini: %s: %w", stage, err)
	}
	if err := sess.send(buildSetup(model, cfg)); err != nil {
		return abort("setup", err)
	}
	if err := sess.awaitSetup(ctx); err != nil {
		return abort("setup", err)
	}
	if err := sess.sendTurns(cfg.History, false); err != nil {
		return abort("seed history", err)
	}

	go sess.receiveLoop()
	go sess.keepaliveLoop()
	return sess, nil
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
