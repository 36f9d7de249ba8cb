package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/mockinterview/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{
			S2S: config.ProviderEntry{Name: "gemini-live", Options: map[string]any{"x": []any{1}}},
		},
		Session: config.SessionConfig{Temperature: 0.7, CatalogFile: "a.yaml"},
		Room:    config.RoomConfig{AgentName: "interviewer", TokenTTL: time.Minute},
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		check   func(t *testing.T, d config.ConfigDiff)
		changed bool
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
			check: func(t *testing.T, d config.ConfigDiff) {
				if len(d.RestartRequired) != 0 {
					t.Errorf("restart = %v", d.RestartRequired)
				}
			},
		},
		{
			name:    "log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			changed: true,
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:    "catalog only",
			mutate:  func(c *config.Config) { c.Session.CatalogFile = "b.yaml" },
			changed: true,
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.CatalogChanged || d.SessionChanged {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name:    "session defaults",
			mutate:  func(c *config.Config) { c.Session.Temperature = 1.1 },
			changed: true,
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.SessionChanged || d.CatalogChanged {
					t.Errorf("diff = %+v", d)
				}
			},
		},
		{
			name: "restart sections",
			mutate: func(c *config.Config) {
				c.Server.ListenAddr = ":9999"
				c.Providers.S2S.Model = "other"
				c.Room.TokenTTL = time.Hour
				c.Storage.PostgresDSN = "postgres://x"
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				want := []string{"server", "providers", "room", "storage"}
				if !slices.Equal(d.RestartRequired, want) {
					t.Errorf("restart = %v, want %v", d.RestartRequired, want)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, next := baseConfig(), baseConfig()
			tt.mutate(next)
			d := config.Diff(old, next)
			if d.Changed() != tt.changed {
				t.Errorf("Changed() = %v, want %v", d.Changed(), tt.changed)
			}
			tt.check(t, d)
		})
	}
}
