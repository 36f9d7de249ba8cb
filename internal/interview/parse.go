package interview

import (
	"github.com/MrWong99/mockinterview/internal/prompt"
)

// Server-side session constants. Clients cannot override these.
const (
	DefaultModel           = "gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice           = "Charon"
	DefaultTemperature     = 0.8
	DefaultMaxOutputTokens = 2048
)

// Defaults are the server-controlled inputs to [Parse].
type Defaults struct {
	// APIKey is the server credential. When set it always wins over a key
	// supplied in metadata.
	APIKey string

	Model           string
	Voice           string
	Temperature     float64
	MaxOutputTokens int

	// Modalities is the preset used when metadata carries none.
	Modalities string
}

// DefaultDefaults returns the built-in server defaults without a credential.
func DefaultDefaults() Defaults {
	return Defaults{
		Model:           DefaultModel,
		Voice:           DefaultVoice,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
		Modalities:      ModalitiesTextAndAudio,
	}
}

// Parse derives a [SessionConfig] from md. It never fails.
//
// When md carries an interviewer role the instructions are composed from
// the catalog; otherwise md.Instructions is used verbatim. Model, voice,
// temperature and output cap always come from d.
func Parse(md Metadata, d Defaults, catalog prompt.Catalog) SessionConfig {
	var instructions string
	if md.InterviewerRole.Set {
		instructions = prompt.Compose(catalog, md.PromptRequest())
	} else {
		instructions = md.Instructions
	}

	apiKey := d.APIKey
	if apiKey == "" {
		apiKey = md.APIKey
	}

	preset := d.Modalities
	if md.Modalities.Set {
		preset = md.Modalities.Value
	}

	return NewSessionConfig(SessionConfigParams{
		APIKey:          apiKey,
		Instructions:    instructions,
		Model:           d.Model,
		Voice:           d.Voice,
		Temperature:     d.Temperature,
		MaxOutputTokens: d.MaxOutputTokens,
		Modalities:      ModalitiesFor(preset),
		ImageGeneration: bool(md.ImageGeneration),
	})
}

// ParseRaw is a convenience wrapper around [ParseMetadata] and [Parse].
func ParseRaw(raw []byte, d Defaults, catalog prompt.Catalog) SessionConfig {
	return Parse(ParseMetadata(raw), d, catalog)
}

// PromptRequest projects the metadata onto the composer's input.
func (md Metadata) PromptRequest() prompt.Request {
	return prompt.Request{
		InterviewerRole: md.InterviewerRole.Value,
		Personality:     md.Personality,
		Mode:            md.Mode,
		Language:        md.Language,
		Difficulty:      string(md.Difficulty),
		GenderPrompt:    md.GenderPrompt,
		CandidateRole:   md.CandidateRole,
		ExperienceLevel: string(md.ExperienceLevel),
		JobDescription:  md.JobDescription,
	}
}
