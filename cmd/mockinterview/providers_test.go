package main

import (
	"testing"

	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/resilience"
	"github.com/MrWong99/mockinterview/pkg/provider/vad/energy"
)

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	cfg := &config.Config{}
	cfg.Providers.S2S = config.ProviderEntry{Name: "gemini-live", APIKey: "k"}
	cfg.Providers.VAD = config.ProviderEntry{Name: "energy", Options: map[string]any{"hangover_ms": 300}}
	cfg.Providers.LLM = config.ProviderEntry{Name: "openai", APIKey: "k", Model: "gpt-4o-mini"}
	cfg.Providers.LLMFallback = config.ProviderEntry{Name: "openai", APIKey: "k2", Model: "gpt-4o"}

	ps, err := buildProviders(t.Context(), cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.S2S == nil {
		t.Error("s2s provider missing")
	}
	if _, ok := ps.VAD.(*energy.Engine); !ok {
		t.Errorf("vad = %T, want *energy.Engine", ps.VAD)
	}
	if _, ok := ps.LLM.(*resilience.LLMFallback); !ok {
		t.Errorf("llm = %T, want *resilience.LLMFallback", ps.LLM)
	}
	if ps.Image != nil {
		t.Errorf("image = %T, want nil when unconfigured", ps.Image)
	}
}

func TestBuildProviders_ImageWithoutServerKey(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	cfg := &config.Config{}
	cfg.Providers.S2S = config.ProviderEntry{Name: "gemini-live"}
	cfg.Providers.Image = config.ProviderEntry{Name: "imagen"}

	ps, err := buildProviders(t.Context(), cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if _, ok := ps.Image.(*resilience.ImageGuard); !ok {
		t.Errorf("image = %T, want *resilience.ImageGuard", ps.Image)
	}
}

func TestBuildProviders_Errors(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	t.Run("no s2s", func(t *testing.T) {
		t.Parallel()
		if _, err := buildProviders(t.Context(), &config.Config{}, reg); err == nil {
			t.Error("expected error without s2s")
		}
	})
	t.Run("unregistered vad skipped", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{}
		cfg.Providers.S2S = config.ProviderEntry{Name: "gemini-live"}
		cfg.Providers.VAD = config.ProviderEntry{Name: "does-not-exist"}
		ps, err := buildProviders(t.Context(), cfg, reg)
		if err != nil || ps.VAD != nil {
			t.Errorf("got %v, %v", ps, err)
		}
	})
	t.Run("bad llm entry", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{}
		cfg.Providers.S2S = config.ProviderEntry{Name: "gemini-live"}
		cfg.Providers.LLM = config.ProviderEntry{Name: "openai"}
		if _, err := buildProviders(t.Context(), cfg, reg); err == nil {
			t.Error("expected error for openai without key")
		}
	})
}

func TestOptInt(t *testing.T) {
	t.Parallel()

	opts := map[string]any{"a": 3, "b": 2.9, "c": "7"}
	if optInt(opts, "a") != 3 || optInt(opts, "b") != 2 || optInt(opts, "c") != 0 || optInt(nil, "a") != 0 {
		t.Errorf("optInt mismatch")
	}
}
