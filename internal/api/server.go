// Package api is the HTTP surface of the interview server: access tokens,
// question banks, interview history, the prompt catalog, health probes,
// metrics and the realtime room endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/mockinterview/internal/health"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/prompt"
	"github.com/MrWong99/mockinterview/internal/questions"
	"github.com/MrWong99/mockinterview/internal/token"
	"github.com/MrWong99/mockinterview/pkg/memory"
)

const maxBodyBytes = 1 << 20

// QuestionGenerator produces a question bank for an interview config.
type QuestionGenerator interface {
	Generate(ctx context.Context, cfg questions.Config) ([]questions.Question, error)
}

// Server holds the dependencies of every route.
type Server struct {
	store     memory.Store
	questions QuestionGenerator
	signer    *token.Signer
	catalog   func() prompt.Catalog
	health    *health.Handler
	metrics   *observe.Metrics
	promHTTP  http.Handler
	rtc       http.Handler

	roomURL     string
	agentName   string
	newIdentity func() string
	newRoom     func() string
}

// Option configures a [Server].
type Option func(*Server)

// WithQuestions enables POST /api/questions/generate.
func WithQuestions(g QuestionGenerator) Option { return func(s *Server) { s.questions = g } }

// WithSigner enables POST /api/interview-token. Without a signer the route
// answers 500.
func WithSigner(sg *token.Signer) Option { return func(s *Server) { s.signer = sg } }

// WithRoomURL sets the url returned alongside access tokens.
func WithRoomURL(u string) Option { return func(s *Server) { s.roomURL = u } }

// WithAgentName sets the agent named in issued tokens.
func WithAgentName(n string) Option { return func(s *Server) { s.agentName = n } }

// WithCatalog sets the catalog source for GET /api/catalog. It is called on
// every request so reloads are visible.
func WithCatalog(fn func() prompt.Catalog) Option { return func(s *Server) { s.catalog = fn } }

// WithHealth mounts the probes of h.
func WithHealth(h *health.Handler) Option { return func(s *Server) { s.health = h } }

// WithMetrics records request metrics on m and serves h at /metrics.
func WithMetrics(m *observe.Metrics, h http.Handler) Option {
	return func(s *Server) { s.metrics, s.promHTTP = m, h }
}

// WithRTC mounts the realtime room handler at /rtc.
func WithRTC(h http.Handler) Option { return func(s *Server) { s.rtc = h } }

// WithIdentityFunc replaces the candidate identity generator.
func WithIdentityFunc(fn func() string) Option { return func(s *Server) { s.newIdentity = fn } }

// New returns a Server over store.
func New(store memory.Store, opts ...Option) *Server {
	s := &Server{
		store:       store,
		catalog:     prompt.Default,
		health:      health.New(),
		metrics:     observe.DefaultMetrics(),
		agentName:   "interviewer",
		newIdentity: CandidateIdentity,
		newRoom:     RoomName,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	s.health.Register(r)
	if s.promHTTP != nil {
		r.Method(http.MethodGet, "/metrics", s.promHTTP)
	}
	if s.rtc != nil {
		r.Method(http.MethodGet, "/rtc", s.rtc)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/interview-token", s.handleInterviewToken)
		r.Post("/questions/generate", s.handleGenerateQuestions)
		r.Get("/catalog", s.handleCatalog)

		r.Route("/interviews", func(r chi.Router) {
			r.Post("/", s.handleCreateInterview)
			r.Get("/", s.handleListInterviews)
			r.Delete("/", s.handleDeleteAllInterviews)
			r.Get("/{id}", s.handleGetInterview)
			r.Put("/{id}", s.handleUpdateInterview)
			r.Delete("/{id}", s.handleDeleteInterview)
			r.Post("/{id}/messages", s.handleAppendMessage)
		})
	})
	return r
}

// ── Helpers ──────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

var errEmptyBody = errors.New("empty request body")

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	c := s.catalog()
	out := make(map[prompt.Dimension][]string, len(prompt.Dimensions))
	for _, d := range prompt.Dimensions {
		labels := c.Labels(d)
		if labels == nil {
			labels = []string{}
		}
		out[d] = labels
	}
	respondJSON(w, http.StatusOK, out)
}
