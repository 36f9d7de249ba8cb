// Package energy implements vad.Engine with a short-term energy detector.
//
// The detector maps the RMS level of each frame onto [0, 1] between a noise
// floor and a speech ceiling (in dBFS) and applies onset and hangover counts
// so single clicks do not open a segment and short pauses do not close one.
package energy

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/vad"
)

var _ vad.Engine = (*Engine)(nil)

const (
	defaultFloorDB   = -60.0
	defaultCeilingDB = -20.0
	defaultOnset     = 2
	defaultHangover  = 300 // ms
)

// Option configures an Engine.
type Option func(*Engine)

// WithLevels sets the noise floor and speech ceiling in dBFS.
func WithLevels(floorDB, ceilingDB float64) Option {
	return func(e *Engine) {
		e.floorDB = floorDB
		e.ceilingDB = ceilingDB
	}
}

// WithOnsetFrames sets how many consecutive speech frames open a segment.
func WithOnsetFrames(n int) Option {
	return func(e *Engine) { e.onset = max(n, 1) }
}

// WithHangoverMs sets how long the level must stay below the silence
// threshold before a segment closes.
func WithHangoverMs(ms int) Option {
	return func(e *Engine) { e.hangoverMs = max(ms, 0) }
}

// Engine creates energy-based VAD sessions.
type Engine struct {
	floorDB    float64
	ceilingDB  float64
	onset      int
	hangoverMs int
}

// New returns an Engine with the given options applied.
func New(opts ...Option) *Engine {
	e := &Engine{
		floorDB:    defaultFloorDB,
		ceilingDB:  defaultCeilingDB,
		onset:      defaultOnset,
		hangoverMs: defaultHangover,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("energy: %w", err)
	}
	if e.ceilingDB <= e.floorDB {
		return nil, fmt.Errorf("energy: ceiling %.1f dBFS must exceed floor %.1f dBFS", e.ceilingDB, e.floorDB)
	}
	return &session{
		cfg:       cfg,
		floorDB:   e.floorDB,
		ceilingDB: e.ceilingDB,
		onset:     e.onset,
		hangover:  max(e.hangoverMs/cfg.FrameSizeMs, 1),
	}, nil
}

type session struct {
	cfg       vad.Config
	floorDB   float64
	ceilingDB float64
	onset     int
	hangover  int

	mu       sync.Mutex
	speaking bool
	loud     int
	quiet    int
	closed   bool
}

func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if len(frame) != s.cfg.FrameBytes() {
		return vad.Event{}, fmt.Errorf("%w: got %d bytes, want %d", vad.ErrFrameSize, len(frame), s.cfg.FrameBytes())
	}
	p := s.probability(frame)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return vad.Event{}, fmt.Errorf("energy: session closed")
	}

	ev := vad.Event{Probability: p}
	if !s.speaking {
		if p >= s.cfg.SpeechThreshold {
			s.loud++
		} else {
			s.loud = 0
		}
		if s.loud >= s.onset {
			s.speaking, s.loud, s.quiet = true, 0, 0
			ev.Type = vad.SpeechStart
		} else {
			ev.Type = vad.Silence
		}
		return ev, nil
	}

	if p < s.cfg.SilenceThreshold {
		s.quiet++
	} else {
		s.quiet = 0
	}
	if s.quiet >= s.hangover {
		s.speaking, s.quiet = false, 0
		ev.Type = vad.SpeechEnd
	} else {
		ev.Type = vad.SpeechContinue
	}
	return ev, nil
}

// probability maps the frame's RMS level onto [0, 1].
func (s *session) probability(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(frame[2*i:])))
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	if rms == 0 {
		return 0
	}
	db := 20 * math.Log10(rms/32768)
	return min(max((db-s.floorDB)/(s.ceilingDB-s.floorDB), 0), 1)
}

func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking, s.loud, s.quiet = false, 0, 0
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
