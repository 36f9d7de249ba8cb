package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CatalogChanged is set when session.catalog_file names a different file
	// or, for configs loaded by a [Watcher], when the file's content changed.
	CatalogChanged bool

	// SessionChanged is set when any session default other than the catalog
	// changed. New sessions pick up the values; live ones keep theirs.
	SessionChanged bool

	// RestartRequired lists sections that changed but are not hot-reloaded.
	RestartRequired []string
}

// Changed reports whether d carries any hot-reloadable change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CatalogChanged || d.SessionChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	o, n := old.Session, new.Session
	d.CatalogChanged = o.CatalogFile != n.CatalogFile || old.catalogDigest != new.catalogDigest
	o.CatalogFile, n.CatalogFile = "", ""
	d.SessionChanged = o != n

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFormat != new.Server.LogFormat {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Room.AgentName != new.Room.AgentName || old.Room.TokenSecret != new.Room.TokenSecret || old.Room.TokenTTL != new.Room.TokenTTL {
		d.RestartRequired = append(d.RestartRequired, "room")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	return entryEqual(a.S2S, b.S2S) && entryEqual(a.Image, b.Image) &&
		entryEqual(a.LLM, b.LLM) && entryEqual(a.LLMFallback, b.LLMFallback) &&
		entryEqual(a.VAD, b.VAD)
}

// entryEqual ignores Options, which may hold values that are not comparable.
func entryEqual(a, b ProviderEntry) bool {
	a.Options, b.Options = nil, nil
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL &&
		a.Model == b.Model && a.Voice == b.Voice && a.Timeout == b.Timeout
}
