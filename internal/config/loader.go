package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"s2s":   {"gemini-live"},
	"image": {"gemini", "imagen"},
	"llm":   {"groq", "openai", "gemini", "anthropic", "ollama", "mistral", "deepseek"},
	"vad":   {"energy", "silero"},
}

// EnvFiles are loaded, in order, by [LoadEnv]. Variables already set in the
// process environment are never overwritten.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnv loads the dotenv files that exist among files, or [EnvFiles] when
// none are given. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = EnvFiles
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load env %q: %w", f, err)
		}
	}
	return nil
}

// Load reads the YAML configuration file at path, applies environment
// overrides and returns a validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return parse(data, nil)
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if lookup != nil {
		ApplyEnv(cfg, lookup)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills credentials and connection strings from the environment.
// A variable only applies when the matching field is empty.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	set(&cfg.Providers.S2S.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	set(&cfg.Providers.Image.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	set(&cfg.Storage.PostgresDSN, "DATABASE_URL")
	set(&cfg.Room.TokenSecret, "ROOM_TOKEN_SECRET")

	for _, e := range []*ProviderEntry{&cfg.Providers.LLM, &cfg.Providers.LLMFallback} {
		switch e.Name {
		case "groq":
			set(&e.APIKey, "GROQ_API_KEY")
		case "openai":
			set(&e.APIKey, "OPENAI_API_KEY")
		case "gemini":
			set(&e.APIKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
		}
	}
	if cfg.Providers.LLM.Model == "" && cfg.Providers.LLM.Name == "groq" {
		set(&cfg.Providers.LLM.Model, "GROQ_LARGE_JOBS_MODEL")
	}
}

// ApplyDefaults fills zero values with the built-in defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "text"
	}
	if cfg.Providers.S2S.Name == "" {
		cfg.Providers.S2S.Name = "gemini-live"
	}
	if cfg.Providers.VAD.Name == "" {
		cfg.Providers.VAD.Name = "energy"
	}
	if cfg.Providers.LLM.Name == "groq" && cfg.Providers.LLM.Model == "" {
		cfg.Providers.LLM.Model = "openai/gpt-oss-120b"
	}
	if cfg.Session.DefaultModalities == "" {
		cfg.Session.DefaultModalities = ModalitiesTextAndAudio
	}
	if cfg.Room.AgentName == "" {
		cfg.Room.AgentName = "interviewer"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	switch cfg.Server.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.PublicURL != "" {
		if u, err := url.Parse(cfg.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.public_url %q is not an absolute URL", cfg.Server.PublicURL))
		}
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("s2s", cfg.Providers.S2S.Name)
	validateProviderName("image", cfg.Providers.Image.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	if cfg.Providers.LLMFallback.Name != "" && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallback is set but providers.llm is not configured"))
	}
	for name, e := range map[string]ProviderEntry{
		"s2s": cfg.Providers.S2S, "image": cfg.Providers.Image,
		"llm": cfg.Providers.LLM, "llm_fallback": cfg.Providers.LLMFallback,
	} {
		if e.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must not be negative", name))
		}
	}

	s := cfg.Session
	if s.Temperature < 0 || s.Temperature > 2 {
		errs = append(errs, fmt.Errorf("session.temperature %.2f is out of range [0, 2]", s.Temperature))
	}
	if s.MaxOutputTokens < 0 {
		errs = append(errs, fmt.Errorf("session.max_output_tokens %d must not be negative", s.MaxOutputTokens))
	}
	switch s.DefaultModalities {
	case "", ModalitiesTextAndAudio, ModalitiesTextOnly, ModalitiesAudioOnly:
	default:
		errs = append(errs, fmt.Errorf("session.default_modalities %q is invalid; valid values: text_and_audio, text_only, audio_only", s.DefaultModalities))
	}

	if cfg.Room.TokenTTL < 0 {
		errs = append(errs, errors.New("room.token_ttl must not be negative"))
	}
	if cfg.Room.TokenSecret == "" {
		slog.Warn("room.token_secret is empty; access tokens cannot be issued")
	}
	if cfg.Providers.S2S.APIKey == "" {
		slog.Warn("providers.s2s.api_key is empty; candidates must supply their own key in metadata")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
