package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/mockinterview/internal/app"
	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/interview"
	"github.com/MrWong99/mockinterview/pkg/memory"
	"github.com/MrWong99/mockinterview/pkg/memory/inmem"
	s2smock "github.com/MrWong99/mockinterview/pkg/provider/s2s/mock"
)

// testConfig returns a config that listens on a random local port and
// issues tokens.
func testConfig() *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Room:   config.RoomConfig{AgentName: "interviewer", TokenSecret: "app-test-secret"},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, p *s2smock.Provider) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, &app.Providers{S2S: p},
		app.WithStore(inmem.New()),
		app.WithMetrics(testMetrics(t), http.NotFoundHandler()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_RequiresS2S(t *testing.T) {
	t.Parallel()

	if _, err := app.New(context.Background(), testConfig(), &app.Providers{}); err == nil {
		t.Fatal("expected error without an s2s provider")
	}
}

func TestNew_InMemoryStoreAndDefaults(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Providers.S2S = config.ProviderEntry{Name: "gemini-live", APIKey: "server-key", Voice: "Kore"}
	cfg.Session.Temperature = 1.2
	cfg.Session.DefaultModalities = config.ModalitiesAudioOnly

	a, err := app.New(context.Background(), cfg, &app.Providers{S2S: &s2smock.Provider{}},
		app.WithMetrics(testMetrics(t), http.NotFoundHandler()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := a.Store().(*inmem.Store); !ok {
		t.Errorf("store = %T, want *inmem.Store", a.Store())
	}

	d := a.Defaults()
	want := interview.DefaultDefaults()
	if d.APIKey != "server-key" || d.Voice != "Kore" || d.Model != want.Model {
		t.Errorf("defaults = %+v", d)
	}
	if d.Temperature != 1.2 || d.Modalities != config.ModalitiesAudioOnly || d.MaxOutputTokens != want.MaxOutputTokens {
		t.Errorf("defaults = %+v", d)
	}
}

func TestNew_BadCatalogFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Session.CatalogFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := app.New(context.Background(), cfg, &app.Providers{S2S: &s2smock.Provider{}},
		app.WithStore(inmem.New()), app.WithMetrics(testMetrics(t), http.NotFoundHandler()))
	if err == nil {
		t.Fatal("expected error for a missing catalog file")
	}
}

func TestRoomURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		srv  config.ServerConfig
		want string
	}{
		{config.ServerConfig{ListenAddr: ":8080"}, "ws://localhost:8080/rtc"},
		{config.ServerConfig{ListenAddr: "10.0.0.1:80"}, "ws://10.0.0.1:80/rtc"},
		{config.ServerConfig{PublicURL: "https://interview.example.com"}, "wss://interview.example.com/rtc"},
		{config.ServerConfig{PublicURL: "http://host:3000/app/"}, "ws://host:3000/app/rtc"},
	}
	for _, tt := range tests {
		if got := app.RoomURL(tt.srv); got != tt.want {
			t.Errorf("RoomURL(%+v) = %q, want %q", tt.srv, got, tt.want)
		}
	}
}

func TestApp_Reload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, []byte("interviewer_role:\n  Recruiter: You are a recruiter.\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	old := testConfig()
	a := newApp(t, old, &s2smock.Provider{})

	next := testConfig()
	next.Session.Temperature = 0.3
	next.Session.CatalogFile = catalogPath
	a.Reload(old, next)

	if got := a.Defaults().Temperature; got != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	var labels map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&labels); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.Join(labels["interviewer_role"], ","), "Recruiter") {
		t.Errorf("roles after reload = %v", labels["interviewer_role"])
	}

	// A broken catalog keeps the previous one.
	broken := testConfig()
	broken.Session.Temperature = 0.3
	broken.Session.CatalogFile = filepath.Join(dir, "gone.yaml")
	a.Reload(next, broken)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))
	labels = nil
	_ = json.NewDecoder(rec.Body).Decode(&labels)
	if !strings.Contains(strings.Join(labels["interviewer_role"], ","), "Recruiter") {
		t.Errorf("roles after failed reload = %v", labels["interviewer_role"])
	}
}

func TestApp_RunJoinAndShutdown(t *testing.T) {
	t.Parallel()

	provider := &s2smock.Provider{}
	a := newApp(t, testConfig(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()
	eventually(t, "listener", func() bool { return a.Addr() != nil })
	base := "http://" + a.Addr().String()

	// Token for a candidate.
	resp, err := http.Post(base+"/api/interview-token", "application/json",
		strings.NewReader(`{"roomName":"room-e2e","config":`+hrMetadata+`}`))
	if err != nil {
		t.Fatal(err)
	}
	var tok struct {
		AccessToken string `json:"accessToken"`
		URL         string `json:"url"`
	}
	err = json.NewDecoder(resp.Body).Decode(&tok)
	resp.Body.Close()
	if err != nil || tok.AccessToken == "" {
		t.Fatalf("token response: %v %+v", err, tok)
	}

	// Unauthenticated upgrade is refused.
	resp, err = http.Get(base + "/rtc?token=nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", resp.StatusCode)
	}

	dctx, dcancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer dcancel()
	conn, _, err := websocket.Dial(dctx, "ws://"+a.Addr().String()+"/rtc?token="+tok.AccessToken, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	eventually(t, "interviewer session", func() bool { return len(provider.Calls()) == 1 })
	if got := provider.Calls()[0].Cfg.Instructions; got == "" {
		t.Error("session started without instructions")
	}
	eventually(t, "dispatcher entry", func() bool { return a.Dispatcher().Active() == 1 })

	var ivs []memory.Interview
	eventually(t, "interview record", func() bool {
		ivs, _ = a.Store().List(context.Background(), 10)
		return len(ivs) == 1
	})
	if ivs[0].Status != memory.StatusInProgress {
		t.Errorf("status = %q, want in_progress", ivs[0].Status)
	}

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := a.Shutdown(sctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := a.Shutdown(sctx); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}

	if !provider.LastSession().Closed() {
		t.Error("live session not closed on shutdown")
	}
	if a.Dispatcher().Active() != 0 {
		t.Errorf("active managers after shutdown = %d", a.Dispatcher().Active())
	}
	iv, err := a.Store().Get(context.Background(), ivs[0].ID)
	if err != nil || iv.Status != memory.StatusCompleted {
		t.Errorf("interview after shutdown = %+v, %v", iv, err)
	}

	select {
	case err := <-runErr:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Error("Run did not return after Shutdown")
	}
}
