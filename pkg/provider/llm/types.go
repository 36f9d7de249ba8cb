package llm

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// ToolDefinition describes a tool that can be offered to a model.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does. It is shown to the model.
	Description string

	// Parameters is the JSON Schema of the tool's arguments.
	Parameters map[string]any
}

// JSONSchema names a schema the reply must conform to.
type JSONSchema struct {
	Name   string
	Schema map[string]any
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	ContextWindow   int
	MaxOutputTokens int

	// SupportsJSONMode indicates native JSON-object response formatting.
	SupportsJSONMode bool

	// SupportsSchema indicates the backend enforces a [JSONSchema] itself.
	// Otherwise the schema is only described in the prompt.
	SupportsSchema bool

	// FixedTemperature models reject a sampling temperature.
	FixedTemperature bool
}
