package questions_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/questions"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	llmmock "github.com/MrWong99/mockinterview/pkg/provider/llm/mock"
)

const bank = `{"questions":[
  {"question":"Tell me about a conflict.","category":"Behavioral","hints":["a","b","c"]},
  {"question":"Design a rate limiter.","category":"System Design","hints":["x","y","z","extra"]},
  {"question":"","category":"Empty","hints":[]}
]}`

func counter() func() string {
	var n atomic.Int64
	return func() string { return "q" + strconv.FormatInt(n.Add(1), 10) }
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: bank}}
	g := questions.New(p, questions.WithIDFunc(counter()))

	qs, err := g.Generate(context.Background(), questions.Config{
		InterviewerRole: "Tech Lead",
		Personality:     "Skeptical",
		Mode:            "Stress Test",
		Language:        "Hebrew",
		Difficulty:      "4",
		CandidateRole:   "Backend Engineer",
		ExperienceLevel: "3",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2 (empty question dropped)", len(qs))
	}
	if qs[0].ID != "q1" || qs[1].ID != "q2" {
		t.Errorf("ids = %q, %q", qs[0].ID, qs[1].ID)
	}
	if qs[0].Text != "Tell me about a conflict." || qs[0].Category != "Behavioral" {
		t.Errorf("first question = %+v", qs[0])
	}
	if len(qs[1].Hints) != questions.HintLevels {
		t.Errorf("hints not capped: %v", qs[1].Hints)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete called %d times", len(calls))
	}
	req := calls[0].Req
	if req.Temperature != 0.7 || !req.JSONMode {
		t.Errorf("request temperature=%v json=%v", req.Temperature, req.JSONMode)
	}
	if req.SystemPrompt == "" {
		t.Error("system prompt empty")
	}
	if req.Schema == nil || req.Schema.Name != "question_bank" {
		t.Errorf("schema = %+v", req.Schema)
	}
	user := req.Messages[0].Content
	for _, want := range []string{
		"10 interview questions",
		"Backend Engineer",
		"3-5 years",
		"Tech Lead (Focus on technical depth",
		"Tone: Challenge assumptions",
		"test resilience",
		"**Hebrew**",
		"Difficulty level 4/5",
		"General role in tech",
		"Hidden Agenda:** None",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	if _, ok := calls[0].Ctx.Deadline(); !ok {
		t.Error("Complete ctx has no deadline")
	}
}

func TestGenerate_CodeFence(t *testing.T) {
	t.Parallel()

	fenced := "```json\n" + bank + "\n```"
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: fenced}}
	qs, err := questions.New(p).Generate(context.Background(), questions.Config{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(qs) != 2 || qs[0].ID == "" {
		t.Errorf("got %+v", qs)
	}
}

func TestGenerate_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", "  "},
		{"not json", "sure, here are some questions"},
		{"no questions key", `{"items":[]}`},
		{"questions null", `{"questions":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: tt.content}}
			_, err := questions.New(p).Generate(context.Background(), questions.Config{})
			if !errors.Is(err, questions.ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestGenerate_EmptyArrayIsValid(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `{"questions":[]}`}}
	qs, err := questions.New(p).Generate(context.Background(), questions.Config{})
	if err != nil || len(qs) != 0 {
		t.Errorf("got %v, %v", qs, err)
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := &llmmock.Provider{CompleteErr: boom}
	_, err := questions.New(p).Generate(context.Background(), questions.Config{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestGenerate_Timeout(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := questions.New(p, questions.WithTimeout(20*time.Millisecond)).Generate(context.Background(), questions.Config{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestExperienceText(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"1":  "0-1 years",
		"5":  "10+ years",
		"0":  "Unknown experience",
		"6":  "Unknown experience",
		"":   "Unknown experience",
		"ab": "Unknown experience",
	}
	for in, want := range tests {
		if got := questions.ExperienceText(interview.FlexText(in)); got != want {
			t.Errorf("ExperienceText(%q) = %q, want %q", in, got, want)
		}
	}
}
