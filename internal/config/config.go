// Package config provides the configuration schema, loader, provider
// registry and hot-reload watcher for the interview server.
package config

import (
	"crypto/sha256"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Modalities presets accepted by session.default_modalities.
const (
	ModalitiesTextAndAudio = "text_and_audio"
	ModalitiesTextOnly     = "text_only"
	ModalitiesAudioOnly    = "audio_only"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
	Room      RoomConfig      `yaml:"room"`
	Storage   StorageConfig   `yaml:"storage"`

	// catalogDigest is the sha256 of the catalog file content, recorded by
	// [Watcher] so [Diff] notices edits to a file whose name did not change.
	catalogDigest [sha256.Size]byte
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat is "text" or "json". Default: text.
	LogFormat string `yaml:"log_format"`

	// PublicURL is the externally reachable base URL. The room url handed to
	// candidates is derived from it.
	PublicURL string `yaml:"public_url"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM certificate paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the backend for each kind of model. Each entry's
// Name is looked up in the [Registry].
type ProvidersConfig struct {
	S2S ProviderEntry `yaml:"s2s"`

	// Image backs the generate_image tool. Leave Name empty to disable it.
	Image ProviderEntry `yaml:"image"`

	// LLM generates question banks. LLMFallback is tried when it fails.
	LLM         ProviderEntry `yaml:"llm"`
	LLMFallback ProviderEntry `yaml:"llm_fallback"`

	// VAD selects the barge-in detector. Default: energy.
	VAD ProviderEntry `yaml:"vad"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "gemini-live", "groq").
	Name string `yaml:"name"`

	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Voice is only used by speech providers.
	Voice string `yaml:"voice"`

	// Timeout bounds a single request. Zero keeps the caller's default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// SessionConfig holds defaults applied to every new interview session.
// These fields are hot-reloadable.
type SessionConfig struct {
	Temperature       float64 `yaml:"temperature"`
	MaxOutputTokens   int     `yaml:"max_output_tokens"`
	DefaultModalities string  `yaml:"default_modalities"`

	// CatalogFile, when set, is a YAML prompt catalog merged over the
	// built-in one.
	CatalogFile string `yaml:"catalog_file"`
}

// RoomConfig configures the realtime room endpoint and its access tokens.
type RoomConfig struct {
	// AgentName is the identity of the interviewer inside each room.
	AgentName string `yaml:"agent_name"`

	// TokenSecret signs access tokens. Without it no tokens are issued.
	TokenSecret string `yaml:"token_secret"`

	TokenTTL time.Duration `yaml:"token_ttl"`

	// AllowedOrigins lists host patterns allowed to open cross-origin
	// websocket connections.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig selects the interview store. An empty DSN keeps interviews
// in memory.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}
