package memory

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the lifecycle state of an interview record.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPaused     Status = "paused"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

// Participant identifies who produced a message.
type Participant string

const (
	ParticipantUser  Participant = "user"
	ParticipantAgent Participant = "agent"
)

// Interview is a stored interview with its full transcript.
type Interview struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Status    Status          `json:"status"`
	Config    json.RawMessage `json:"config"`
	Messages  []Message       `json:"messages"`
}

// Message is one finalised transcript segment.
type Message struct {
	TranscriptID string      `json:"transcriptId"`
	InterviewID  string      `json:"interviewId"`
	Participant  Participant `json:"participant"`
	Transcript   string      `json:"transcript"`

	// TimestampStart and TimestampEnd are unix milliseconds.
	TimestampStart int64 `json:"timestampStart"`
	TimestampEnd   int64 `json:"timestampEnd"`

	// AudioURL is empty until the segment's audio has been uploaded.
	AudioURL string `json:"audioUrl,omitempty"`
}

// Validation errors returned by [ValidateMessage]. They all wrap
// [ErrInvalidMessage].
var (
	ErrInvalidMessage      = errors.New("memory: invalid message")
	errMissingTranscript   = invalid("Valid transcript string is required")
	errMissingTranscriptID = invalid("Valid transcriptId is required")
	errBadParticipant      = invalid("Valid participant (user/agent) is required")
)

type invalidMessageError struct{ msg string }

func invalid(msg string) error { return &invalidMessageError{msg: msg} }

func (e *invalidMessageError) Error() string { return e.msg }

func (e *invalidMessageError) Unwrap() error { return ErrInvalidMessage }

// ValidateMessage checks the fields every appended message must carry. The
// returned error's text is suitable for an API response.
func ValidateMessage(m Message) error {
	switch {
	case m.Transcript == "":
		return errMissingTranscript
	case m.TranscriptID == "":
		return errMissingTranscriptID
	case m.Participant != ParticipantUser && m.Participant != ParticipantAgent:
		return errBadParticipant
	}
	return nil
}

// Update describes a partial change to an interview. Zero fields are left
// untouched.
type Update struct {
	// Status replaces the status when non-empty.
	Status Status

	// Config replaces the config when non-nil. The JSON literal null clears it.
	Config json.RawMessage

	// Messages replaces the whole transcript when non-nil. An empty non-nil
	// slice clears it.
	Messages []Message
}

// AppendResult reports the outcome of [Store.AppendMessage].
type AppendResult struct {
	// Duplicate is true when the message content was already recorded under a
	// different transcript id and nothing was stored.
	Duplicate bool `json:"duplicate"`

	// MessageCount is the number of messages in the transcript afterwards.
	MessageCount int `json:"messageCount"`
}
