// Package app wires the interview server together.
//
// The App struct owns the full lifecycle: New builds the store, the session
// dispatcher, the room hub and the HTTP API; Run serves until the context is
// cancelled; Shutdown drains and tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/mockinterview/internal/api"
	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/health"
	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/prompt"
	"github.com/MrWong99/mockinterview/internal/questions"
	"github.com/MrWong99/mockinterview/internal/token"
	"github.com/MrWong99/mockinterview/pkg/memory"
	"github.com/MrWong99/mockinterview/pkg/memory/inmem"
	"github.com/MrWong99/mockinterview/pkg/memory/postgres"
	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
	"github.com/MrWong99/mockinterview/pkg/room/wsroom"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// S2S runs the live interviewer. Required.
	S2S s2s.Provider

	VAD   vad.Engine
	Image imagegen.Provider

	// LLM generates question banks.
	LLM llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store      memory.Store
	metrics    *observe.Metrics
	promHTTP   http.Handler
	signer     *token.Signer
	dispatcher *Dispatcher
	hub        *wsroom.Hub
	health     *health.Handler
	handler    http.Handler
	server     *http.Server

	defaults atomic.Pointer[interview.Defaults]

	mu       sync.Mutex
	listener net.Listener

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an interview store instead of creating one from config.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metrics instruments and the handler served at
// /metrics.
func WithMetrics(m *observe.Metrics, h http.Handler) Option {
	return func(a *App) { a.metrics, a.promHTTP = m, h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.S2S == nil {
		return nil, errors.New("app: an s2s provider is required")
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.promHTTP == nil {
		a.promHTTP = observe.MetricsHandler(nil)
	}

	var checkers []health.Checker

	// ── 1. Interview store ───────────────────────────────────────────────
	if a.store == nil {
		pinger, err := a.initStore(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: init store: %w", err)
		}
		if pinger != nil {
			checkers = append(checkers, health.Ping("database", pinger))
		}
	}

	// ── 2. Prompt catalog and session defaults ───────────────────────────
	catalog, err := loadCatalog(cfg.Session.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	d := sessionDefaults(cfg)
	a.defaults.Store(&d)

	// ── 3. Access tokens ─────────────────────────────────────────────────
	if cfg.Room.TokenSecret != "" {
		var tokOpts []token.Option
		if cfg.Room.TokenTTL > 0 {
			tokOpts = append(tokOpts, token.WithTTL(cfg.Room.TokenTTL))
		}
		a.signer, err = token.NewSigner(cfg.Room.TokenSecret, tokOpts...)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	// ── 4. Session dispatcher and room hub ───────────────────────────────
	a.dispatcher = NewDispatcher(SessionManagerConfig{
		Provider:       providers.S2S,
		VAD:            providers.VAD,
		VADConfig:      vad.DefaultConfig(),
		ImageGenerator: providers.Image,
		ImageTimeout:   cfg.Providers.Image.Timeout,
		Catalog:        catalog,
		Defaults:       a.Defaults,
		Store:          a.store,
		Metrics:        a.metrics,
	})
	hubOpts := []wsroom.Option{wsroom.WithAgentIdentity(cfg.Room.AgentName)}
	if len(cfg.Room.AllowedOrigins) > 0 {
		hubOpts = append(hubOpts, wsroom.WithOriginPatterns(cfg.Room.AllowedOrigins...))
	}
	a.hub = wsroom.New(a.authenticator(), a.dispatcher.HandleJoin, hubOpts...)

	// ── 5. HTTP API ──────────────────────────────────────────────────────
	checkers = append(checkers, health.Checker{Name: "providers", Check: a.checkProviders})
	a.health = health.New(checkers...)

	apiOpts := []api.Option{
		api.WithHealth(a.health),
		api.WithMetrics(a.metrics, a.promHTTP),
		api.WithRTC(a.hub),
		api.WithRoomURL(RoomURL(cfg.Server)),
		api.WithAgentName(cfg.Room.AgentName),
		api.WithCatalog(func() prompt.Catalog { return a.dispatcher.catalog() }),
	}
	if a.signer != nil {
		apiOpts = append(apiOpts, api.WithSigner(a.signer))
	}
	if providers.LLM != nil {
		apiOpts = append(apiOpts, api.WithQuestions(questions.New(providers.LLM,
			questions.WithTimeout(cfg.Providers.LLM.Timeout),
			questions.WithMetrics(a.metrics),
		)))
	}
	a.handler = api.New(a.store, apiOpts...).Router()
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("app initialised",
		"store", storeKind(cfg),
		"tokens", a.signer != nil,
		"image_generation", providers.Image != nil,
		"question_generation", providers.LLM != nil,
	)
	return a, nil
}

func (a *App) initStore(ctx context.Context) (interface{ Ping(context.Context) error }, error) {
	if a.cfg.Storage.PostgresDSN == "" {
		a.store = inmem.New()
		return nil, nil
	}
	pg, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return pg, nil
}

func storeKind(cfg *config.Config) string {
	if cfg.Storage.PostgresDSN != "" {
		return "postgres"
	}
	return "memory"
}

func (a *App) authenticator() wsroom.Authenticator {
	if a.signer == nil {
		return func(*http.Request) (wsroom.Identity, error) {
			return wsroom.Identity{}, errors.New("room tokens are not configured")
		}
	}
	return api.TokenAuthenticator(a.signer)
}

func (a *App) checkProviders(context.Context) error {
	if a.providers.S2S == nil {
		return errors.New("no s2s provider")
	}
	return nil
}

// loadCatalog merges the catalog file at path, if any, over the built-in
// catalog.
func loadCatalog(path string) (prompt.Catalog, error) {
	if path == "" {
		return prompt.Default(), nil
	}
	override, err := prompt.LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	return prompt.Default().Merge(override), nil
}

// sessionDefaults maps the session and s2s config onto interview defaults.
// Zero values keep the built-in defaults.
func sessionDefaults(cfg *config.Config) interview.Defaults {
	d := interview.DefaultDefaults()
	d.APIKey = cfg.Providers.S2S.APIKey
	if cfg.Providers.S2S.Model != "" {
		d.Model = cfg.Providers.S2S.Model
	}
	if cfg.Providers.S2S.Voice != "" {
		d.Voice = cfg.Providers.S2S.Voice
	}
	if cfg.Session.Temperature > 0 {
		d.Temperature = cfg.Session.Temperature
	}
	if cfg.Session.MaxOutputTokens > 0 {
		d.MaxOutputTokens = cfg.Session.MaxOutputTokens
	}
	if cfg.Session.DefaultModalities != "" {
		d.Modalities = cfg.Session.DefaultModalities
	}
	return d
}

// RoomURL derives the websocket url candidates connect to from the public
// url, or from the listen address when none is configured.
func RoomURL(s config.ServerConfig) string {
	if s.PublicURL == "" {
		host := s.ListenAddr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		return "ws://" + host + "/rtc"
	}
	u, err := url.Parse(s.PublicURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/rtc"
	return u.String()
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Defaults returns the session defaults new sessions start with.
func (a *App) Defaults() interview.Defaults { return *a.defaults.Load() }

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Dispatcher returns the session dispatcher.
func (a *App) Dispatcher() *Dispatcher { return a.dispatcher }

// Store returns the interview store.
func (a *App) Store() memory.Store { return a.store }

// Addr returns the address the server listens on once Run has started, or
// nil.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of next. Sessions already running
// keep their configuration; new sessions use the reloaded values.
func (a *App) Reload(old, next *config.Config) {
	d := config.Diff(old, next)
	if d.SessionChanged {
		nd := sessionDefaults(next)
		a.defaults.Store(&nd)
		slog.Info("session defaults reloaded")
	}
	if d.CatalogChanged {
		c, err := loadCatalog(next.Session.CatalogFile)
		if err != nil {
			slog.Warn("catalog reload failed, keeping previous catalog", "path", next.Session.CatalogFile, "err", err)
		} else {
			a.dispatcher.SetCatalog(c)
			slog.Info("prompt catalog reloaded", "path", next.Session.CatalogFile)
		}
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to apply", "sections", d.RestartRequired)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled or the server fails. A clean stop
// returns nil.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.server.Addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if tls := a.cfg.Server.TLS; tls != nil {
			errCh <- a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- a.server.Serve(ln)
	}()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown fails readiness, stops accepting requests, closes every live
// interview and then releases the store. It respects ctx's deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "active_sessions", a.dispatcher.Active())
		a.health.SetDraining()

		// Hijacked websocket connections are not tracked by the server, so
		// the hub and dispatcher are closed explicitly.
		if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher: %w", err))
		}
		if err := a.hub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("hub: %w", err))
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, ctx.Err())
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
