// Package interview turns participant metadata into an immutable
// [SessionConfig] for a real-time interview session.
//
// Metadata arrives as untyped JSON from the connecting client. It is decoded
// once, at the boundary, into the typed [Metadata] schema; every later stage
// works with named optional fields instead of probing a map.
package interview

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Metadata is the schema of the participant metadata attached to a room
// join. Every field is optional. [Optional] fields distinguish "absent" from
// "present but null or empty" where that matters.
type Metadata struct {
	InterviewerRole Optional `json:"interviewer_role"`
	Personality     string   `json:"interviewer_personality,omitempty"`
	Mode            string   `json:"interview_mode,omitempty"`
	Language        string   `json:"interview_language,omitempty"`
	Difficulty      FlexText `json:"difficulty_level,omitempty"`
	GenderPrompt    string   `json:"gender_prompt,omitempty"`
	CandidateRole   string   `json:"candidate_role,omitempty"`
	ExperienceLevel FlexText `json:"experience_level,omitempty"`
	JobDescription  string   `json:"job_description,omitempty"`

	// Modalities is one of "text_and_audio", "text_only" or "audio_only".
	Modalities Optional `json:"modalities"`

	// ImageGeneration toggles the generate_image tool.
	ImageGeneration FlexBool `json:"nano_banana_enabled,omitempty"`

	// APIKey is only used when the server has no credential of its own.
	APIKey string `json:"gemini_api_key,omitempty"`

	// Instructions is used verbatim when InterviewerRole is absent.
	Instructions string `json:"instructions,omitempty"`
}

// ParseMetadata decodes raw participant metadata. Malformed or non-object
// input yields the zero Metadata; it never returns an error. A field whose
// JSON type does not fit the schema is skipped while the rest still decode.
func ParseMetadata(raw []byte) Metadata {
	var md Metadata
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Metadata{}
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return md
		}
		return Metadata{}
	}
	return md
}

// Optional records whether its key was present at all. A null or non-string
// value still counts as present, with an empty Value.
type Optional struct {
	Set   bool
	Value string
}

// UnmarshalJSON implements [json.Unmarshaler].
func (o *Optional) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = ""
	var s string
	if json.Unmarshal(data, &s) == nil {
		o.Value = s
	}
	return nil
}

// FlexBool decodes booleans leniently: JSON booleans as-is, strings by a
// case-insensitive comparison with "true", and anything else by truthiness.
type FlexBool bool

// UnmarshalJSON implements [json.Unmarshaler].
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = FlexBool(truthy(v))
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return false
}

// FlexText accepts a JSON string or number and keeps its textual form.
// Numbers are rendered without a trailing fraction when integral, so 5 and
// "5" decode to the same value.
type FlexText string

// UnmarshalJSON implements [json.Unmarshaler].
func (f *FlexText) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = ""
	case string:
		*f = FlexText(t)
	case float64:
		*f = FlexText(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*f = FlexText(strconv.FormatBool(t))
	default:
		// Objects and arrays cannot name a catalog label.
		*f = ""
	}
	return nil
}
