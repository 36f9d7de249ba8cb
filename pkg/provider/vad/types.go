package vad

// Event is the detection result for a single frame.
type Event struct {
	Type EventType

	// Probability is the speech score in [0, 1].
	Probability float64
}

// EventType enumerates detection states.
type EventType int

const (
	// SpeechStart marks the first frame of a speech segment.
	SpeechStart EventType = iota

	// SpeechContinue marks a frame inside an ongoing segment.
	SpeechContinue

	// SpeechEnd marks the first frame after a segment ended.
	SpeechEnd

	// Silence marks a frame outside any segment.
	Silence
)

// String returns the lowercase name of the event type.
func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech_start"
	case SpeechContinue:
		return "speech_continue"
	case SpeechEnd:
		return "speech_end"
	case Silence:
		return "silence"
	default:
		return "unknown"
	}
}

// Active reports whether the frame belongs to a speech segment.
func (t EventType) Active() bool {
	return t == SpeechStart || t == SpeechContinue
}
