// Package questions generates an interview question bank with a text LLM
// before a live session starts.
package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

const (
	// DefaultCount is the number of questions requested per bank.
	DefaultCount = 10

	// HintLevels is the number of progressive hints per question.
	HintLevels = 3

	defaultTimeout     = 60 * time.Second
	defaultTemperature = 0.7
)

// ErrMalformed is returned when the model reply is not a question bank.
var ErrMalformed = errors.New("questions: malformed model response")

// experienceLevels maps the 1-based experience_level to a years range.
var experienceLevels = []string{"0-1", "1-3", "3-5", "5-10", "10+"}

// Config is the subset of the interview configuration the generator uses.
// It decodes from the same JSON object as participant metadata.
type Config struct {
	InterviewerRole      string             `json:"interviewer_role"`
	Personality          string             `json:"interviewer_personality"`
	Mode                 string             `json:"interview_mode"`
	Language             string             `json:"interview_language"`
	Difficulty           interview.FlexText `json:"difficulty_level"`
	CandidateRole        string             `json:"candidate_role"`
	ExperienceLevel      interview.FlexText `json:"experience_level"`
	JobDescription       string             `json:"job_description"`
	CompanyType          string             `json:"company_type"`
	UnspokenRequirements string             `json:"unspoken_requirements"`
}

// Question is one generated interview question.
type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Hints    []string `json:"hints"`
}

// Generator builds question banks using an [llm.Provider].
type Generator struct {
	llm     llm.Provider
	timeout time.Duration
	count   int
	metrics *observe.Metrics
	newID   func() string
}

// Option configures a [Generator].
type Option func(*Generator)

// WithTimeout bounds a single generation call. Zero keeps the default of 60s.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithCount sets how many questions are requested.
func WithCount(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.count = n
		}
	}
}

// WithMetrics records provider requests on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithIDFunc replaces the uuid generator. Intended for tests.
func WithIDFunc(fn func() string) Option {
	return func(g *Generator) { g.newID = fn }
}

// New returns a Generator backed by p.
func New(p llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:     p,
		timeout: defaultTimeout,
		count:   DefaultCount,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate asks the model for a question bank matching cfg.
func (g *Generator) Generate(ctx context.Context, cfg Config) ([]Question, error) {
	ctx, span := observe.StartSpan(ctx, "questions.Generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: UserPrompt(cfg, g.count)}},
		Temperature:  defaultTemperature,
		JSONMode:     true,
		Schema:       bankSchema,
	})
	if g.metrics != nil {
		g.metrics.RecordProviderRequest(ctx, "llm", "questions", err)
	}
	if err != nil {
		return nil, fmt.Errorf("questions: generate: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformed)
	}

	qs, err := g.parse(resp.Content)
	if err != nil {
		return nil, err
	}
	observe.Logger(ctx).Debug("question bank generated", "questions", len(qs))
	return qs, nil
}

// bankSchema is the strict structured-output form of bankResponse.
var bankSchema = &llm.JSONSchema{
	Name: "question_bank",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{"type": "string"},
						"category": map[string]any{"type": "string"},
						"hints":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required":             []string{"question", "category", "hints"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	},
}

type bankResponse struct {
	Questions *[]struct {
		Question string   `json:"question"`
		Category string   `json:"category"`
		Hints    []string `json:"hints"`
	} `json:"questions"`
}

func (g *Generator) parse(content string) ([]Question, error) {
	var bank bankResponse
	if err := json.Unmarshal([]byte(stripFences(content)), &bank); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if bank.Questions == nil {
		return nil, fmt.Errorf("%w: missing 'questions' array", ErrMalformed)
	}
	out := make([]Question, 0, len(*bank.Questions))
	for _, q := range *bank.Questions {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		hints := q.Hints
		if len(hints) > HintLevels {
			hints = hints[:HintLevels]
		}
		if hints == nil {
			hints = []string{}
		}
		out = append(out, Question{
			ID:       g.newID(),
			Text:     q.Question,
			Category: q.Category,
			Hints:    hints,
		})
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExperienceText renders the 1-based experience level as a years range.
func ExperienceText(level interview.FlexText) string {
	n, err := strconv.Atoi(strings.TrimSpace(string(level)))
	if err != nil || n < 1 || n > len(experienceLevels) {
		return "Unknown experience"
	}
	return experienceLevels[n-1] + " years"
}
