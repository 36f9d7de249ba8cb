package wsroom

// Envelope types exchanged as websocket text frames. Binary frames carry
// raw PCM audio in both directions.
const (
	TypeWelcome       = "welcome"
	TypeMetadata      = "metadata"
	TypeRPCRequest    = "rpc_request"
	TypeRPCResponse   = "rpc_response"
	TypeStreamHeader  = "stream_header"
	TypeStreamChunk   = "stream_chunk"
	TypeStreamTrailer = "stream_trailer"
)

// Envelope is the JSON message format of the hub. Only the fields relevant
// to Type are set.
type Envelope struct {
	Type string `json:"type"`

	// ID is the RPC request id or the stream id.
	ID string `json:"id,omitempty"`

	// welcome
	Room             string `json:"room,omitempty"`
	Identity         string `json:"identity,omitempty"`
	AgentIdentity    string `json:"agent_identity,omitempty"`
	InputSampleRate  int    `json:"input_sample_rate,omitempty"`
	OutputSampleRate int    `json:"output_sample_rate,omitempty"`

	// metadata
	Metadata string `json:"metadata,omitempty"`

	// rpc_request / rpc_response
	Method    string `json:"method,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`

	// stream_header
	Topic      string            `json:"topic,omitempty"`
	Name       string            `json:"name,omitempty"`
	MimeType   string            `json:"mime_type,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	TotalSize  int               `json:"total_size,omitempty"`

	// stream_chunk
	Index int    `json:"index,omitempty"`
	Data  []byte `json:"data,omitempty"`
}
