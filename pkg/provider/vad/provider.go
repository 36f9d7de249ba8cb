// Package vad defines the Engine interface for voice activity detection.
//
// The interview agent runs every candidate audio frame through a VAD session
// before it reaches the speech-to-speech model. Long stretches of silence are
// not forwarded, which keeps the upstream socket quiet while the candidate
// thinks.
//
// Each session keeps its own smoothing state, so concurrent candidates are
// processed independently. A single SessionHandle is not safe for concurrent
// use.
package vad

import "errors"

// ErrFrameSize is returned by ProcessFrame when the frame length does not
// match the configured SampleRate and FrameSizeMs.
var ErrFrameSize = errors.New("vad: unexpected frame size")

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the PCM sample rate in Hz (s16le mono).
	SampleRate int

	// FrameSizeMs is the duration of each frame passed to ProcessFrame.
	FrameSizeMs int

	// SpeechThreshold is the probability above which a frame counts as speech.
	SpeechThreshold float64

	// SilenceThreshold is the probability below which a frame counts as
	// silence. Must be <= SpeechThreshold.
	SilenceThreshold float64
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("vad: sample rate must be positive"))
	}
	if c.FrameSizeMs <= 0 {
		errs = append(errs, errors.New("vad: frame size must be positive"))
	}
	if c.SpeechThreshold < 0 || c.SpeechThreshold > 1 {
		errs = append(errs, errors.New("vad: speech threshold out of range [0,1]"))
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold > c.SpeechThreshold {
		errs = append(errs, errors.New("vad: silence threshold must be in [0, speech threshold]"))
	}
	return errors.Join(errs...)
}

// FrameBytes is the expected byte length of one s16le mono frame.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// DefaultConfig returns the settings used for candidate microphone audio:
// 16 kHz, 20 ms frames.
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		FrameSizeMs:      20,
		SpeechThreshold:  0.5,
		SilenceThreshold: 0.35,
	}
}

// SessionHandle is an active VAD session for one audio stream.
type SessionHandle interface {
	// ProcessFrame classifies one frame of raw s16le PCM. It must not block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears detection state without closing the session.
	Reset()

	// Close releases the session. Calling Close more than once is safe.
	Close() error
}

// Engine creates VAD sessions. Implementations must be safe for concurrent
// use.
type Engine interface {
	NewSession(cfg Config) (SessionHandle, error)
}
