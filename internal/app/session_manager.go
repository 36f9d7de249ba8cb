package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/mockinterview/internal/agent"
	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/prompt"
	"github.com/MrWong99/mockinterview/internal/tools"
	"github.com/MrWong99/mockinterview/pkg/memory"
	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
	"github.com/MrWong99/mockinterview/pkg/room"
)

// UpdateConfigMethod is the RPC the candidate's client calls to reconfigure
// a running interview.
const UpdateConfigMethod = "pg.updateConfig"

// Outbound image stream constants.
const (
	ImageTopic      = "nano_banana_image"
	ImageStreamName = "generated_image.jpg"
	ImageMimeType   = "image/jpeg"
)

const (
	greetingInstructions = "Start the conversation by greeting the user and presenting yourself as the interviewer. " +
		"Then ask the first question based on both the interviewer role and personality as well as the interviewee's role and personality."
	updatedInstructions = "Configuration updated."

	rpcTimeout      = 30 * time.Second
	storeTimeout    = 5 * time.Second
	changedFalse    = `{"changed":false}`
	changedTrue     = `{"changed":true}`
	maxCarriedTurns = 200
)

// Errors returned by [SessionManager].
var (
	ErrAlreadyStarted = errors.New("app: session manager already started")
	ErrManagerClosed  = errors.New("app: session manager closed")
)

// Continuity reports whether a replacement carried the conversation forward.
type Continuity int

const (
	// ContinuityPreserved means the new session was seeded with the previous
	// session's history.
	ContinuityPreserved Continuity = iota

	// ContinuityLost means the history could not be read and the new session
	// starts fresh.
	ContinuityLost
)

func (c Continuity) String() string {
	if c == ContinuityPreserved {
		return "preserved"
	}
	return "lost"
}

// ReplaceResult describes the outcome of [SessionManager.Replace].
type ReplaceResult struct {
	Continuity   Continuity
	HistoryItems int

	// Err is the error that stopped the replacement, if any. It is also
	// returned as Replace's error.
	Err error
}

// SessionManagerConfig holds the dependencies of a [SessionManager].
type SessionManagerConfig struct {
	// Provider connects live model sessions. Required.
	Provider s2s.Provider

	// VAD, when non-nil, is used for barge-in detection. Built once and
	// shared by every session of the manager.
	VAD       vad.Engine
	VADConfig vad.Config

	// ImageGenerator backs the generate_image tool. When nil the tool is
	// never offered, whatever the metadata says.
	ImageGenerator imagegen.Provider
	ImageTimeout   time.Duration

	Catalog prompt.Catalog

	// Defaults returns the current server-side session defaults. It is
	// called on every parse so reloaded values apply to the next session.
	Defaults func() interview.Defaults

	// Store, when non-nil, receives an interview record and every finished
	// utterance.
	Store memory.Store

	Metrics *observe.Metrics
}

type binding struct {
	room        room.Room
	participant room.RemoteParticipant
}

// SessionManager owns the interviewer for one candidate. It starts the first
// live session, answers the reconfiguration RPC and swaps the live session
// when the configuration changes. All exported methods are safe for
// concurrent use; Start, Replace, Close and the RPC handler are serialised.
type SessionManager struct {
	deps SessionManagerConfig

	// bound is set once by Start. SendImage reads it without taking mu so a
	// tool call can never wait on a replacement that is closing its session.
	bound atomic.Pointer[binding]

	interviewID atomic.Value // string

	mu         sync.Mutex
	cfg        interview.SessionConfig
	agent      *agent.Agent
	session    *agent.Session
	generation uint64 // bumped for every started session
	closed     bool
}

var _ tools.ImageSink = (*SessionManager)(nil)

// NewSessionManager returns an unstarted manager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Defaults == nil {
		d := interview.DefaultDefaults()
		cfg.Defaults = func() interview.Defaults { return d }
	}
	if cfg.Catalog == nil {
		cfg.Catalog = prompt.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	m := &SessionManager{deps: cfg}
	m.interviewID.Store("")
	return m
}

// Start binds the manager to participant in rm, starts the first live
// session, greets the candidate and registers the reconfiguration RPC.
func (m *SessionManager) Start(ctx context.Context, rm room.Room, participant room.RemoteParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if !m.bound.CompareAndSwap(nil, &binding{room: rm, participant: participant}) {
		return ErrAlreadyStarted
	}

	log := observe.Logger(ctx)

	cfg := interview.ParseRaw([]byte(participant.Metadata()), m.deps.Defaults(), m.deps.Catalog)
	m.cfg = cfg
	m.openInterview(ctx, participant.Metadata())

	sess, ag, err := m.startSession(ctx, cfg, agent.ChatContext{})
	if err != nil {
		m.abandonStart(ctx)
		return fmt.Errorf("app: start session: %w", err)
	}
	m.session, m.agent = sess, ag
	m.deps.Metrics.SessionStarted(ctx)

	if err := sess.GenerateReply(ctx, greetingInstructions); err != nil {
		log.Warn("greeting failed", "err", err)
	}

	updateConfigRoutes.add(rm, participant.Identity(), m.handleUpdateConfig)

	log.Info("session started", "config", cfg)
	return nil
}

// abandonStart undoes a failed Start so the manager can be started again and
// no interview record is left behind. Must be called with mu held.
func (m *SessionManager) abandonStart(ctx context.Context) {
	if id := m.InterviewID(); id != "" {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		if err := m.deps.Store.Delete(sctx, id); err != nil {
			observe.Logger(ctx).Warn("remove unstarted interview", "interview_id", id, "err", err)
		}
		cancel()
		m.interviewID.Store("")
	}
	m.cfg = interview.SessionConfig{}
	m.bound.Store(nil)
}

// Config returns the configuration currently in force.
func (m *SessionManager) Config() interview.SessionConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Session returns the live session, or nil when none is running.
func (m *SessionManager) Session() *agent.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// InterviewID returns the id of the stored interview record, or "" when no
// store is configured.
func (m *SessionManager) InterviewID() string {
	return m.interviewID.Load().(string)
}

// handleUpdateConfig is the room.RPCHandler for [UpdateConfigMethod]. Both
// rejection cases answer exactly like an unchanged configuration; only the
// log tells them apart. A differing configuration after a failed
// replacement starts a session again.
func (m *SessionManager) handleUpdateConfig(ctx context.Context, inv room.RPCInvocation) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	log := observe.Logger(ctx).With("method", UpdateConfigMethod, "caller", inv.CallerIdentity)

	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bound.Load()
	switch {
	case m.closed || b == nil:
		log.Debug("rpc rejected", "reason", "no active session")
		m.deps.Metrics.RecordRPC(ctx, UpdateConfigMethod, "no_session")
		return changedFalse, nil
	case inv.CallerIdentity != b.participant.Identity():
		log.Debug("rpc rejected", "reason", "caller is not the session participant")
		m.deps.Metrics.RecordRPC(ctx, UpdateConfigMethod, "unauthorized")
		return changedFalse, nil
	}

	next := interview.ParseRaw([]byte(inv.Payload), m.deps.Defaults(), m.deps.Catalog)
	if next.Equal(m.cfg) {
		log.Debug("rpc ignored", "reason", "configuration unchanged")
		m.deps.Metrics.RecordRPC(ctx, UpdateConfigMethod, "unchanged")
		return changedFalse, nil
	}

	m.cfg = next
	m.updateInterviewConfig(ctx, inv.Payload)
	if _, err := m.replaceLocked(ctx, next, updatedInstructions); err != nil {
		log.Error("replace session failed", "err", err)
	}
	m.deps.Metrics.RecordRPC(ctx, UpdateConfigMethod, "changed")
	return changedTrue, nil
}

// Replace swaps the live session for one built from cfg, carrying the
// conversation history forward when it can be read.
func (m *SessionManager) Replace(ctx context.Context, cfg interview.SessionConfig) (ReplaceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ReplaceResult{Continuity: ContinuityLost, Err: ErrManagerClosed}, ErrManagerClosed
	}
	if m.bound.Load() == nil {
		err := errors.New("app: replace: manager not started")
		return ReplaceResult{Continuity: ContinuityLost, Err: err}, err
	}
	m.cfg = cfg
	return m.replaceLocked(ctx, cfg, updatedInstructions)
}

// replaceLocked swaps the live session. A non-empty announce is sent as a
// prompt to the new session. Must be called with mu held.
func (m *SessionManager) replaceLocked(ctx context.Context, cfg interview.SessionConfig, announce string) (ReplaceResult, error) {
	log := observe.Logger(ctx)
	res := ReplaceResult{Continuity: ContinuityLost}

	var history agent.ChatContext
	if old := m.session; old != nil {
		h, err := old.ChatContext()
		if err != nil {
			log.Warn("could not read conversation history, starting fresh", "err", err)
		} else {
			history = h.Truncate(maxCarriedTurns)
			res.Continuity = ContinuityPreserved
		}

		if err := old.Close(); err != nil {
			log.Warn("close previous session", "err", err)
		}
		m.session = nil
		m.deps.Metrics.SessionEnded(ctx)
	}
	res.HistoryItems = history.Len()

	fail := func(err error) (ReplaceResult, error) {
		res.Err = fmt.Errorf("app: replace: %w", err)
		m.deps.Metrics.RecordReplace(ctx, res.Continuity.String(), res.Err)
		return res, res.Err
	}

	sess, ag, err := m.startSession(ctx, cfg, history)
	if err != nil {
		return fail(err)
	}
	m.session, m.agent = sess, ag
	m.deps.Metrics.ActiveSessions.Add(ctx, 1)

	if announce != "" {
		if err := sess.GenerateReply(ctx, announce); err != nil {
			return fail(fmt.Errorf("announce update: %w", err))
		}
	}

	m.deps.Metrics.RecordReplace(ctx, res.Continuity.String(), nil)
	log.Info("session replaced",
		"continuity", res.Continuity.String(),
		"history_items", res.HistoryItems,
		"config", cfg,
	)
	return res, nil
}

// startSession builds the tool set and agent for cfg and connects a live
// session seeded with history. Must be called with mu held.
func (m *SessionManager) startSession(ctx context.Context, cfg interview.SessionConfig, history agent.ChatContext) (*agent.Session, *agent.Agent, error) {
	set, err := m.buildTools(cfg)
	if err != nil {
		return nil, nil, err
	}

	ag := &agent.Agent{
		Instructions: cfg.Instructions(),
		Tools:        set,
		ChatContext:  history,
	}

	mods := cfg.Modalities()
	modalities := make([]string, len(mods))
	for i, mod := range mods {
		modalities[i] = string(mod)
	}

	gen := m.generation + 1
	b := m.bound.Load()
	sess, err := agent.Start(ctx, m.deps.Provider, ag, b.room, b.participant, m.deps.VAD, agent.SessionOptions{
		Model:           cfg.Model(),
		Voice:           cfg.Voice(),
		Temperature:     cfg.Temperature(),
		MaxOutputTokens: cfg.MaxOutputTokens(),
		Modalities:      modalities,
		APIKey:          cfg.APIKey(),
		VAD:             m.deps.VADConfig,
		OnTurn:          m.recordTurn,
		OnGoAway:        func() { m.refresh(gen) },
	})
	if err != nil {
		return nil, nil, err
	}
	m.generation = gen
	return sess, ag, nil
}

// refresh replaces session generation gen with one on the same config and
// the history so far, before the provider drops it. The interviewer is not
// prompted, so the candidate hears no break in the conversation.
func (m *SessionManager) refresh(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.bound.Load()
	if m.closed || m.session == nil || m.generation != gen || b == nil {
		return
	}
	ctx := observe.WithLogAttrs(context.Background(),
		slog.String("room", b.room.Name()),
		slog.String("participant", b.participant.Identity()),
	)
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	if _, err := m.replaceLocked(ctx, m.cfg, ""); err != nil {
		observe.Logger(ctx).Error("refresh session failed", "err", err)
	}
}

func (m *SessionManager) buildTools(cfg interview.SessionConfig) (*tools.Set, error) {
	var list []tools.Tool
	if cfg.ImageGeneration() && m.deps.ImageGenerator != nil {
		opts := []tools.ImageOption{
			tools.WithImageMetrics(m.deps.Metrics),
			tools.WithImageAPIKey(cfg.APIKey()),
		}
		if m.deps.ImageTimeout > 0 {
			opts = append(opts, tools.WithImageTimeout(m.deps.ImageTimeout))
		}
		list = append(list, tools.NewImageTool(m.deps.ImageGenerator, m, opts...))
	}
	return tools.NewSet(m.deps.Metrics, list...)
}

// SendImage streams an encoded JPEG to the bound participant. Without a
// bound room it does nothing.
func (m *SessionManager) SendImage(ctx context.Context, data []byte, prompt string) error {
	b := m.bound.Load()
	if b == nil {
		return nil
	}

	w, err := b.room.LocalParticipant().StreamBytes(ctx, room.StreamOptions{
		Topic:    ImageTopic,
		Name:     ImageStreamName,
		MimeType: ImageMimeType,
		Attributes: map[string]string{
			"prompt": prompt,
			"type":   ImageTopic,
		},
		DestinationIdentities: []string{b.participant.Identity()},
		TotalSize:             len(data),
	})
	if err != nil {
		return fmt.Errorf("app: send image: open stream: %w", err)
	}

	_, werr := w.Write(data)
	cerr := w.Close()
	if werr != nil {
		return fmt.Errorf("app: send image: write: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("app: send image: close: %w", cerr)
	}
	return nil
}

// Close ends the live session, unregisters the RPC and marks the stored
// interview completed. It is idempotent.
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	b := m.bound.Load()
	if b != nil {
		updateConfigRoutes.remove(b.room, b.participant.Identity())
	}

	var err error
	if m.session != nil {
		err = m.session.Close()
		m.session = nil
		m.deps.Metrics.SessionEnded(ctx)
	}

	if id := m.InterviewID(); id != "" {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
		if _, uerr := m.deps.Store.Update(sctx, id, memory.Update{Status: memory.StatusCompleted}); uerr != nil {
			observe.Logger(ctx).Warn("mark interview completed", "interview_id", id, "err", uerr)
		}
		cancel()
	}

	if b != nil {
		observe.Logger(ctx).Info("session closed", "room", b.room.Name(), "participant", b.participant.Identity())
	}
	if err != nil {
		return fmt.Errorf("app: close session: %w", err)
	}
	return nil
}

// ── Interview history ────────────────────────────────────────────────────────

func (m *SessionManager) openInterview(ctx context.Context, metadata string) {
	if m.deps.Store == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	iv, err := m.deps.Store.Create(sctx, memory.StatusInProgress, metadataJSON(metadata))
	if err != nil {
		observe.Logger(ctx).Warn("create interview record", "err", err)
		return
	}
	m.interviewID.Store(iv.ID)
}

func (m *SessionManager) updateInterviewConfig(ctx context.Context, payload string) {
	id := m.InterviewID()
	if id == "" {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if _, err := m.deps.Store.Update(sctx, id, memory.Update{Config: metadataJSON(payload)}); err != nil {
		observe.Logger(ctx).Warn("update interview config", "interview_id", id, "err", err)
	}
}

// recordTurn is the agent's OnTurn hook.
func (m *SessionManager) recordTurn(t agent.Turn) {
	id := m.InterviewID()
	if id == "" {
		return
	}

	participant := memory.ParticipantUser
	if t.Role == s2s.RoleAssistant {
		participant = memory.ParticipantAgent
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	res, err := m.deps.Store.AppendMessage(ctx, id, memory.Message{
		TranscriptID:   uuid.NewString(),
		InterviewID:    id,
		Participant:    participant,
		Transcript:     t.Text,
		TimestampStart: t.Start.UnixMilli(),
		TimestampEnd:   t.End.UnixMilli(),
	})
	switch {
	case err != nil:
		slog.Warn("append interview message", "interview_id", id, "err", err)
		m.deps.Metrics.RecordInterviewMessage(ctx, "error")
	case res.Duplicate:
		m.deps.Metrics.RecordInterviewMessage(ctx, "duplicate")
	default:
		m.deps.Metrics.RecordInterviewMessage(ctx, "stored")
	}
}

// metadataJSON returns the metadata object without its credential, or nil
// when raw is not a JSON object.
func metadataJSON(raw string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return nil
	}
	delete(obj, "gemini_api_key")
	out, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	return out
}
