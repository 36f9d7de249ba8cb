package interview

import (
	"log/slog"
	"slices"
)

// Modality is an output channel enabled for the real-time session.
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityAudio Modality = "AUDIO"
)

// Modality presets accepted in participant metadata.
const (
	ModalitiesTextAndAudio = "text_and_audio"
	ModalitiesTextOnly     = "text_only"
	ModalitiesAudioOnly    = "audio_only"
)

// ModalitiesFor maps a metadata preset to its modality set. Unknown presets
// fall back to audio only.
func ModalitiesFor(preset string) []Modality {
	switch preset {
	case ModalitiesTextAndAudio:
		return []Modality{ModalityText, ModalityAudio}
	case ModalitiesTextOnly:
		return []Modality{ModalityText}
	default:
		return []Modality{ModalityAudio}
	}
}

// SessionConfig is the complete, immutable description of one real-time
// interview session. A reconfiguration builds a new SessionConfig and
// replaces the old one; there are no setters.
//
// The zero value is an empty configuration and is valid to compare.
type SessionConfig struct {
	apiKey          string
	instructions    string
	model           string
	voice           string
	temperature     float64
	maxOutputTokens int
	modalities      []Modality
	imageGeneration bool
}

// SessionConfigParams holds the inputs for [NewSessionConfig].
type SessionConfigParams struct {
	APIKey       string
	Instructions string
	Model        string
	Voice        string
	Temperature  float64

	// MaxOutputTokens caps each response. Zero or negative means unbounded.
	MaxOutputTokens int

	Modalities      []Modality
	ImageGeneration bool
}

// NewSessionConfig builds a SessionConfig from p. The modality slice is
// copied and normalised so that equal sets compare equal regardless of
// input order or duplicates.
func NewSessionConfig(p SessionConfigParams) SessionConfig {
	mods := slices.Clone(p.Modalities)
	slices.Sort(mods)
	mods = slices.Compact(mods)
	maxTokens := p.MaxOutputTokens
	if maxTokens < 0 {
		maxTokens = 0
	}
	return SessionConfig{
		apiKey:          p.APIKey,
		instructions:    p.Instructions,
		model:           p.Model,
		voice:           p.Voice,
		temperature:     p.Temperature,
		maxOutputTokens: maxTokens,
		modalities:      mods,
		imageGeneration: p.ImageGeneration,
	}
}

func (c SessionConfig) APIKey() string        { return c.apiKey }
func (c SessionConfig) Instructions() string  { return c.instructions }
func (c SessionConfig) Model() string         { return c.model }
func (c SessionConfig) Voice() string         { return c.voice }
func (c SessionConfig) Temperature() float64  { return c.temperature }
func (c SessionConfig) ImageGeneration() bool { return c.imageGeneration }

// MaxOutputTokens returns the response cap, or 0 when unbounded.
func (c SessionConfig) MaxOutputTokens() int { return c.maxOutputTokens }

// Modalities returns a copy of the enabled modalities in canonical order.
func (c SessionConfig) Modalities() []Modality { return slices.Clone(c.modalities) }

// Equal reports whether c and other describe the same session behaviour.
// The credential is not compared.
func (c SessionConfig) Equal(other SessionConfig) bool {
	return c.instructions == other.instructions &&
		c.model == other.model &&
		c.voice == other.voice &&
		c.temperature == other.temperature &&
		c.maxOutputTokens == other.maxOutputTokens &&
		slices.Equal(c.modalities, other.modalities) &&
		c.imageGeneration == other.imageGeneration
}

// LogValue implements [slog.LogValuer]. The credential is never logged.
func (c SessionConfig) LogValue() slog.Value {
	mods := make([]string, len(c.modalities))
	for i, m := range c.modalities {
		mods[i] = string(m)
	}
	return slog.GroupValue(
		slog.String("model", c.model),
		slog.String("voice", c.voice),
		slog.Float64("temperature", c.temperature),
		slog.Int("max_output_tokens", c.maxOutputTokens),
		slog.Any("modalities", mods),
		slog.Bool("image_generation", c.imageGeneration),
		slog.Int("instructions_len", len(c.instructions)),
		slog.Bool("has_api_key", c.apiKey != ""),
	)
}
