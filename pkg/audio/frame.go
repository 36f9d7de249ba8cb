// Package audio holds the PCM frame type shared by the room transport, the
// voice-activity detector and the live model session, plus the small set of
// conversions needed between them.
//
// All PCM is signed 16-bit little-endian, interleaved when Channels > 1.
package audio

import "fmt"

// Format is a sample rate and channel count.
type Format struct {
	SampleRate int
	Channels   int
}

// Common formats. Gemini Live consumes 16 kHz mono and produces 24 kHz mono.
var (
	Speech16k = Format{SampleRate: 16000, Channels: 1}
	Speech24k = Format{SampleRate: 24000, Channels: 1}
)

func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// BytesPerSecond is the PCM byte rate of f.
func (f Format) BytesPerSecond() int { return f.SampleRate * f.Channels * 2 }

// Frame is a chunk of PCM audio.
type Frame struct {
	Data []byte
	Format
}
