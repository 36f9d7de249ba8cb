package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file, and the prompt catalog file it names, and
// calls a callback when either changes and the config still validates.
// Invalid edits are logged and ignored; the last good config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	lookup   func(string) (string, bool)

	mu      sync.Mutex
	current *Config
	last    snapshot
}

// snapshot identifies one observed state of the watched files.
type snapshot struct {
	mtime        time.Time
	catalogMtime time.Time
	hash         [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithEnv sets the environment lookup applied on every load. The default is
// [os.LookupEnv].
func WithEnv(lookup func(string) (string, bool)) WatcherOption {
	return func(w *Watcher) { w.lookup = lookup }
}

// NewWatcher loads the file at path once and returns a Watcher ready to
// [Watcher.Run].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.last = cfg, snap
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is cancelled and then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	last, catalog := w.last, w.current.Session.CatalogFile
	w.mu.Unlock()
	if info.ModTime().Equal(last.mtime) && modTime(catalog).Equal(last.catalogMtime) {
		return
	}

	cfg, snap, err := w.load()
	if err != nil {
		slog.Warn("config watcher: failed to load config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.hash == w.last.hash {
		w.last = snap
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.last = cfg, snap
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// load parses the config file and fingerprints it together with the
// catalog file it names. An unreadable catalog is fingerprinted as empty;
// loading it is the caller's concern.
func (w *Watcher) load() (*Config, snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, snapshot{}, err
	}
	cfg, err := parse(data, w.lookup)
	if err != nil {
		return nil, snapshot{}, err
	}

	snap := snapshot{mtime: info.ModTime()}
	h := sha256.New()
	h.Write(data)
	if path := cfg.Session.CatalogFile; path != "" {
		snap.catalogMtime = modTime(path)
		catalog, err := os.ReadFile(path)
		if err != nil {
			slog.Debug("config watcher: catalog unreadable", "path", path, "err", err)
		}
		cfg.catalogDigest = sha256.Sum256(catalog)
		h.Write(cfg.catalogDigest[:])
	}
	copy(snap.hash[:], h.Sum(nil))
	return cfg, snap, nil
}

func modTime(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
