package gemini

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
)

// Candidate audio is sent at the model's native input rate.
const inputAudioMIME = "audio/pcm;rate=16000"

// ── Client messages ──────────────────────────────────────────────────────────

type setupMessage struct {
	Setup setup `json:"setup"`
}

type setup struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	Tools                    []toolSet        `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string        `json:"responseModalities"`
	Temperature        *float64        `json:"temperature,omitempty"`
	MaxOutputTokens    int             `json:"maxOutputTokens,omitempty"`
	SpeechConfig       *speechConfig   `json:"speechConfig,omitempty"`
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
}

// thinkingConfig keeps the interviewer's reasoning out of the transcript.
type thinkingConfig struct {
	IncludeThoughts bool `json:"includeThoughts"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	Thought    bool   `json:"thought,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type toolSet struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations,omitempty"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type realtimeInputMessage struct {
	RealtimeInput struct {
		MediaChunks []blob `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type clientContentMessage struct {
	ClientContent struct {
		Turns        []content `json:"turns"`
		TurnComplete bool      `json:"turnComplete"`
	} `json:"clientContent"`
}

type toolResponseMessage struct {
	ToolResponse struct {
		FunctionResponses []functionResponse `json:"functionResponses"`
	} `json:"toolResponse"`
}

type functionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ── Server messages ──────────────────────────────────────────────────────────

type serverMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *serverContent   `json:"serverContent,omitempty"`
	ToolCall      *struct {
		FunctionCalls []functionCall `json:"functionCalls"`
	} `json:"toolCall,omitempty"`
	GoAway *struct {
		TimeLeft string `json:"timeLeft"`
	} `json:"goAway,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn           *content   `json:"modelTurn,omitempty"`
	TurnComplete        bool       `json:"turnComplete,omitempty"`
	Interrupted         bool       `json:"interrupted,omitempty"`
	InputTranscription  *textChunk `json:"inputTranscription,omitempty"`
	OutputTranscription *textChunk `json:"outputTranscription,omitempty"`
}

type textChunk struct {
	Text string `json:"text"`
}

type functionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ── Setup ────────────────────────────────────────────────────────────────────

// buildSetup turns the interviewer's session config into the first message
// of a Live session. Live answers in a single modality, so AUDIO wins over
// TEXT whenever both are enabled. Transcription is requested whenever the
// interviewer speaks so the candidate's history can be stored and carried
// over.
func buildSetup(model string, cfg s2s.SessionConfig) setupMessage {
	speaks := len(cfg.Modalities) == 0 ||
		slices.ContainsFunc(cfg.Modalities, func(m string) bool { return strings.EqualFold(m, "AUDIO") })
	modality := "TEXT"
	if speaks {
		modality = "AUDIO"
	}

	st := setup{
		Model: "models/" + model,
		GenerationConfig: generationConfig{
			ResponseModalities: []string{modality},
			MaxOutputTokens:    cfg.MaxOutputTokens,
			ThinkingConfig:     &thinkingConfig{},
		},
		Tools: declarations(cfg.Tools),
	}
	if cfg.Temperature != 0 {
		st.GenerationConfig.Temperature = &cfg.Temperature
	}
	if cfg.Instructions != "" {
		st.SystemInstruction = &content{Parts: []part{{Text: cfg.Instructions}}}
	}
	if speaks {
		st.InputAudioTranscription = &struct{}{}
		st.OutputAudioTranscription = &struct{}{}
		if cfg.Voice != "" {
			sc := &speechConfig{}
			sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = cfg.Voice
			st.GenerationConfig.SpeechConfig = sc
		}
	}
	return setupMessage{Setup: st}
}

func declarations(defs []llm.ToolDefinition) []toolSet {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]functionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, functionDeclaration{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return []toolSet{{FunctionDeclarations: decls}}
}

// liveRole maps a history role onto the two roles Live accepts. System
// items become user turns.
func liveRole(role string) string {
	if role == s2s.RoleAssistant || role == "model" {
		return "model"
	}
	return "user"
}

// functionResult shapes a tool result as the object Live expects. Non-JSON
// output is wrapped under "output".
func functionResult(out string, err error) map[string]any {
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var obj map[string]any
	if json.Unmarshal([]byte(out), &obj) != nil || obj == nil {
		return map[string]any{"output": out}
	}
	return obj
}
