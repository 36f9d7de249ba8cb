package interview_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/internal/prompt"
)

// ── ParseMetadata ────────────────────────────────────────────────────────────

func TestParseMetadata_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "{not json", "[1,2,3]", `"string"`, "null", "42"} {
		md := interview.ParseMetadata([]byte(raw))
		if md.InterviewerRole.Set || md.Instructions != "" || md.Modalities.Set {
			t.Errorf("ParseMetadata(%q) = %+v, want zero value", raw, md)
		}
	}
}

func TestParseMetadata_TypeMismatchKeepsOtherFields(t *testing.T) {
	t.Parallel()

	md := interview.ParseMetadata([]byte(`{"interviewer_role":"HR","interview_mode":17}`))
	if !md.InterviewerRole.Set || md.InterviewerRole.Value != "HR" {
		t.Fatalf("InterviewerRole = %v, want HR", md.InterviewerRole)
	}
	if md.Mode != "" {
		t.Errorf("Mode = %q, want empty", md.Mode)
	}
}

func TestParseMetadata_FlexibleDifficulty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: `{"difficulty_level":"5"}`, want: "5"},
		{raw: `{"difficulty_level":5}`, want: "5"},
		{raw: `{"difficulty_level":2.5}`, want: "2.5"},
		{raw: `{"difficulty_level":null}`, want: ""},
		{raw: `{"difficulty_level":{"x":1}}`, want: ""},
	}
	for _, tt := range tests {
		md := interview.ParseMetadata([]byte(tt.raw))
		if got := string(md.Difficulty); got != tt.want {
			t.Errorf("%s: Difficulty = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseMetadata_ImageGenerationFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{raw: `{}`, want: false},
		{raw: `{"nano_banana_enabled":true}`, want: true},
		{raw: `{"nano_banana_enabled":false}`, want: false},
		{raw: `{"nano_banana_enabled":"TRUE"}`, want: true},
		{raw: `{"nano_banana_enabled":"True"}`, want: true},
		{raw: `{"nano_banana_enabled":"yes"}`, want: false},
		{raw: `{"nano_banana_enabled":"false"}`, want: false},
		{raw: `{"nano_banana_enabled":1}`, want: true},
		{raw: `{"nano_banana_enabled":0}`, want: false},
		{raw: `{"nano_banana_enabled":[1]}`, want: true},
		{raw: `{"nano_banana_enabled":[]}`, want: false},
		{raw: `{"nano_banana_enabled":null}`, want: false},
	}
	for _, tt := range tests {
		md := interview.ParseMetadata([]byte(tt.raw))
		if got := bool(md.ImageGeneration); got != tt.want {
			t.Errorf("%s: ImageGeneration = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

// ── Parse ────────────────────────────────────────────────────────────────────

func parse(raw string, d interview.Defaults) interview.SessionConfig {
	return interview.ParseRaw([]byte(raw), d, prompt.Default())
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg := parse("", interview.DefaultDefaults())
	if cfg.Model() != interview.DefaultModel {
		t.Errorf("Model = %q", cfg.Model())
	}
	if cfg.Voice() != "Charon" {
		t.Errorf("Voice = %q", cfg.Voice())
	}
	if cfg.Temperature() != 0.8 {
		t.Errorf("Temperature = %v", cfg.Temperature())
	}
	if cfg.MaxOutputTokens() != 2048 {
		t.Errorf("MaxOutputTokens = %d", cfg.MaxOutputTokens())
	}
	if cfg.Instructions() != "" {
		t.Errorf("Instructions = %q, want empty", cfg.Instructions())
	}
	if got := cfg.Modalities(); len(got) != 2 || !slices.Contains(got, interview.ModalityText) || !slices.Contains(got, interview.ModalityAudio) {
		t.Errorf("Modalities = %v, want text and audio", cfg.Modalities())
	}
	if cfg.ImageGeneration() {
		t.Error("ImageGeneration enabled by default")
	}
}

func TestParse_Modalities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		preset string
		want   []interview.Modality
	}{
		{preset: "text_and_audio", want: []interview.Modality{interview.ModalityAudio, interview.ModalityText}},
		{preset: "text_only", want: []interview.Modality{interview.ModalityText}},
		{preset: "audio_only", want: []interview.Modality{interview.ModalityAudio}},
		{preset: "smell_only", want: []interview.Modality{interview.ModalityAudio}},
		{preset: "", want: []interview.Modality{interview.ModalityAudio}},
	}
	for _, tt := range tests {
		cfg := parse(`{"modalities":"`+tt.preset+`"}`, interview.DefaultDefaults())
		if got := cfg.Modalities(); !slices.Equal(got, tt.want) {
			t.Errorf("preset %q: Modalities = %v, want %v", tt.preset, got, tt.want)
		}
	}
}

func TestParse_InstructionModes(t *testing.T) {
	t.Parallel()

	raw := parse(`{"instructions":"Be a pirate."}`, interview.DefaultDefaults())
	if raw.Instructions() != "Be a pirate." {
		t.Errorf("free-text Instructions = %q", raw.Instructions())
	}

	composed := parse(`{"interviewer_role":"CEO","instructions":"Be a pirate."}`, interview.DefaultDefaults())
	if strings.Contains(composed.Instructions(), "pirate") {
		t.Error("structured metadata must ignore free-text instructions")
	}
	if !strings.HasPrefix(composed.Instructions(), "You are the CEO.") {
		t.Errorf("composed Instructions = %q", composed.Instructions())
	}

	unknownRole := parse(`{"interviewer_role":"Wizard"}`, interview.DefaultDefaults())
	if unknownRole.Instructions() == "" {
		t.Error("unknown role produced empty instructions")
	}
}

func TestParse_PresentButNullKeys(t *testing.T) {
	t.Parallel()

	d := interview.DefaultDefaults()

	role := parse(`{"interviewer_role":null,"interviewer_personality":"Skeptical"}`, d)
	if role.Instructions() == "" {
		t.Error("null interviewer_role should still compose instructions")
	}
	if role.Instructions() != parse(`{"interviewer_role":"","interviewer_personality":"Skeptical"}`, d).Instructions() {
		t.Error("null and empty interviewer_role compose differently")
	}

	for _, raw := range []string{`{"modalities":null}`, `{"modalities":7}`} {
		if got := parse(raw, d).Modalities(); !slices.Equal(got, []interview.Modality{interview.ModalityAudio}) {
			t.Errorf("%s: Modalities = %v, want audio only", raw, got)
		}
	}
	if got := parse(`{}`, d).Modalities(); len(got) != 2 {
		t.Errorf("absent modalities = %v, want the server preset", got)
	}
}

func TestParse_Credential(t *testing.T) {
	t.Parallel()

	server := interview.DefaultDefaults()
	server.APIKey = "server-key"

	if got := parse(`{"gemini_api_key":"client-key"}`, server).APIKey(); got != "server-key" {
		t.Errorf("server key not preferred: %q", got)
	}
	if got := parse(`{"gemini_api_key":"client-key"}`, interview.DefaultDefaults()).APIKey(); got != "client-key" {
		t.Errorf("client key fallback = %q", got)
	}
}

func TestParse_EqualityIgnoresCredentialAndIrrelevantFields(t *testing.T) {
	t.Parallel()

	d := interview.DefaultDefaults()
	pairs := []struct {
		name string
		a, b string
	}{
		{
			name: "credential only",
			a:    `{"interviewer_role":"HR","gemini_api_key":"one"}`,
			b:    `{"interviewer_role":"HR","gemini_api_key":"two"}`,
		},
		{
			name: "instructions ignored in structured mode",
			a:    `{"interviewer_role":"HR","instructions":"x"}`,
			b:    `{"interviewer_role":"HR","instructions":"y"}`,
		},
		{
			name: "unknown keys",
			a:    `{"interviewer_role":"HR","theme":"dark"}`,
			b:    `{"interviewer_role":"HR"}`,
		},
		{
			name: "numeric and string difficulty",
			a:    `{"interviewer_role":"HR","difficulty_level":3}`,
			b:    `{"interviewer_role":"HR","difficulty_level":"3"}`,
		},
		{
			name: "unknown modality vs audio only",
			a:    `{"modalities":"holographic"}`,
			b:    `{"modalities":"audio_only"}`,
		},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !parse(tt.a, d).Equal(parse(tt.b, d)) {
				t.Errorf("configs differ for %s / %s", tt.a, tt.b)
			}
		})
	}

	if parse(`{"interviewer_role":"HR"}`, d).Equal(parse(`{"interviewer_role":"CEO"}`, d)) {
		t.Error("different roles compare equal")
	}
	if parse(`{"nano_banana_enabled":true}`, d).Equal(parse(`{}`, d)) {
		t.Error("image flag ignored by Equal")
	}
}

func TestNewSessionConfig_ModalityNormalisation(t *testing.T) {
	t.Parallel()

	a := interview.NewSessionConfig(interview.SessionConfigParams{
		Modalities: []interview.Modality{interview.ModalityText, interview.ModalityAudio, interview.ModalityText},
	})
	b := interview.NewSessionConfig(interview.SessionConfigParams{
		Modalities: []interview.Modality{interview.ModalityAudio, interview.ModalityText},
	})
	if !a.Equal(b) {
		t.Errorf("normalised modality sets differ: %v vs %v", a.Modalities(), b.Modalities())
	}

	mods := a.Modalities()
	mods[0] = "VIDEO"
	if slices.Contains(a.Modalities(), "VIDEO") {
		t.Error("Modalities exposes internal slice")
	}
}

func TestNewSessionConfig_Unbounded(t *testing.T) {
	t.Parallel()

	cfg := interview.NewSessionConfig(interview.SessionConfigParams{MaxOutputTokens: -1})
	if cfg.MaxOutputTokens() != 0 {
		t.Errorf("MaxOutputTokens = %d, want 0 (unbounded)", cfg.MaxOutputTokens())
	}
}
