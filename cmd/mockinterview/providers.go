package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/mockinterview/internal/app"
	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/resilience"
	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
	imagegemini "github.com/MrWong99/mockinterview/pkg/provider/imagegen/gemini"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/mockinterview/pkg/provider/llm/openai"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	geminilive "github.com/MrWong99/mockinterview/pkg/provider/s2s/gemini"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
	"github.com/MrWong99/mockinterview/pkg/provider/vad/energy"
)

// optionalProviders are registered by build-tagged files.
var optionalProviders []func(*config.Registry)

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── S2S ───────────────────────────────────────────────────────────────────
	reg.RegisterS2S("gemini-live", func(entry config.ProviderEntry) (s2s.Provider, error) {
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(entry.APIKey, opts...), nil
	})

	// ── Image ─────────────────────────────────────────────────────────────────
	for _, name := range []string{"gemini", "imagen"} {
		reg.RegisterImage(name, func(entry config.ProviderEntry) (imagegen.Provider, error) {
			var opts []imagegemini.Option
			if entry.Model != "" {
				opts = append(opts, imagegemini.WithModel(entry.Model))
			}
			if entry.BaseURL != "" {
				opts = append(opts, imagegemini.WithBaseURL(entry.BaseURL))
			}
			// Without a server key each session's own key is used.
			p := imagegemini.New(entry.APIKey, opts...)
			return resilience.NewImageGuard(p, resilience.CircuitBreakerConfig{Name: "imagegen/" + name}), nil
		})
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	// Every any-llm backend takes an optional APIKey and BaseURL. Without a
	// key the backend reads its usual environment variable.
	for _, providerName := range []string{"groq", "gemini", "anthropic", "deepseek", "mistral", "ollama"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// openai uses the official SDK so JSON mode is honoured.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, oaillm.WithTimeout(entry.Timeout))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		p, err := oaillm.New(entry.APIKey, entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── VAD ───────────────────────────────────────────────────────────────────
	reg.RegisterVAD("energy", func(entry config.ProviderEntry) (vad.Engine, error) {
		var opts []energy.Option
		if n := optInt(entry.Options, "onset_frames"); n > 0 {
			opts = append(opts, energy.WithOnsetFrames(n))
		}
		if ms := optInt(entry.Options, "hangover_ms"); ms > 0 {
			opts = append(opts, energy.WithHangoverMs(ms))
		}
		return energy.New(opts...), nil
	})

	for _, register := range optionalProviders {
		register(reg)
	}

	names := reg.Names()
	for kind, list := range names {
		slices.Sort(list)
		slog.Debug("registered providers", "kind", kind, "names", list)
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(_ context.Context, cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	var err error

	if ps.S2S, err = create("s2s", cfg.Providers.S2S, reg.CreateS2S); err != nil {
		return nil, err
	}
	if ps.S2S == nil {
		return nil, errors.New("providers.s2s is required")
	}
	if ps.Image, err = create("image", cfg.Providers.Image, reg.CreateImage); err != nil {
		return nil, err
	}
	if ps.VAD, err = create("vad", cfg.Providers.VAD, reg.CreateVAD); err != nil {
		return nil, err
	}

	primary, err := create("llm", cfg.Providers.LLM, reg.CreateLLM)
	if err != nil {
		return nil, err
	}
	if primary != nil {
		fb := resilience.NewLLMFallback(primary, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		secondary, err := create("llm_fallback", cfg.Providers.LLMFallback, reg.CreateLLM)
		if err != nil {
			return nil, err
		}
		if secondary != nil {
			fb.AddFallback(cfg.Providers.LLMFallback.Name, secondary)
		}
		ps.LLM = fb
	}
	return ps, nil
}

// create builds the provider named by entry. An empty name yields the zero
// value; an unregistered name is logged and skipped.
func create[T any](kind string, entry config.ProviderEntry, fn func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	if entry.Name == "" {
		return zero, nil
	}
	p, err := fn(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not available in this build, skipping", "kind", kind, "name", entry.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name)
	return p, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from a provider Options map. YAML decodes
// whole numbers as int and anything with a fraction as float64.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
