//go:build silero

// Package silero implements vad.Engine on top of the Silero VAD ONNX model via
// github.com/streamer45/silero-vad-go.
//
// The package needs cgo and the ONNX Runtime shared library, so it is only
// compiled with the "silero" build tag. Without the tag the energy engine is
// used.
package silero

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/MrWong99/mockinterview/pkg/provider/vad"
)

var _ vad.Engine = (*Engine)(nil)

// windowSamples is the model's fixed analysis window at 16 kHz.
const windowSamples = 512

// Engine creates Silero VAD sessions. Each session owns its own detector.
type Engine struct {
	modelPath    string
	minSilenceMs int
	speechPadMs  int
}

// New returns an Engine loading the model from modelPath.
func New(modelPath string, minSilenceMs, speechPadMs int) (*Engine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("silero: model path is required")
	}
	if minSilenceMs <= 0 {
		minSilenceMs = 100
	}
	if speechPadMs <= 0 {
		speechPadMs = 30
	}
	return &Engine{modelPath: modelPath, minSilenceMs: minSilenceMs, speechPadMs: speechPadMs}, nil
}

// NewSession implements vad.Engine. Only 16 kHz audio is supported.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("silero: %w", err)
	}
	if cfg.SampleRate != 16000 {
		return nil, fmt.Errorf("silero: unsupported sample rate %d", cfg.SampleRate)
	}
	d, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            e.modelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            float32(cfg.SpeechThreshold),
		MinSilenceDurationMs: e.minSilenceMs,
		SpeechPadMs:          e.speechPadMs,
	})
	if err != nil {
		return nil, fmt.Errorf("silero: create detector: %w", err)
	}
	return &session{cfg: cfg, detector: d, buf: make([]float32, 0, windowSamples*2)}, nil
}

type session struct {
	cfg vad.Config

	mu       sync.Mutex
	detector *speech.Detector
	buf      []float32
	speaking bool
}

func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if len(frame) != s.cfg.FrameBytes() {
		return vad.Event{}, fmt.Errorf("%w: got %d bytes, want %d", vad.ErrFrameSize, len(frame), s.cfg.FrameBytes())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector == nil {
		return vad.Event{}, fmt.Errorf("silero: session closed")
	}

	for i := 0; i+1 < len(frame); i += 2 {
		s.buf = append(s.buf, float32(int16(binary.LittleEndian.Uint16(frame[i:])))/32768)
	}

	started, ended := false, false
	for len(s.buf) >= windowSamples {
		segments, err := s.detector.Detect(s.buf[:windowSamples])
		s.buf = append(s.buf[:0], s.buf[windowSamples:]...)
		if err != nil {
			return vad.Event{}, fmt.Errorf("silero: detect: %w", err)
		}
		for _, seg := range segments {
			if !s.speaking && seg.SpeechEndAt == 0 {
				s.speaking, started = true, true
			}
			if seg.SpeechEndAt > 0 {
				s.speaking, ended = false, true
			}
		}
	}

	switch {
	case started && s.speaking:
		return vad.Event{Type: vad.SpeechStart, Probability: 1}, nil
	case ended && !s.speaking:
		return vad.Event{Type: vad.SpeechEnd}, nil
	case s.speaking:
		return vad.Event{Type: vad.SpeechContinue, Probability: 1}, nil
	default:
		return vad.Event{Type: vad.Silence}, nil
	}
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = s.buf[:0]
	s.speaking = false
	if s.detector != nil {
		_ = s.detector.Reset()
	}
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detector == nil {
		return nil
	}
	err := s.detector.Destroy()
	s.detector = nil
	return err
}
