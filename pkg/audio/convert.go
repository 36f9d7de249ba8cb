package audio

import (
	"log/slog"
	"sync"
)

// Converter rewrites frames into Target. It is not safe for concurrent use;
// create one per stream.
type Converter struct {
	Target Format

	warnOnce sync.Once
}

// Convert returns frame in the target format. A frame already in the target
// format is returned as is. A frame with a truncated sample is dropped and
// comes back with nil Data.
func (c *Converter) Convert(frame Frame) Frame {
	ch := max(frame.Channels, 1)
	if len(frame.Data)%(2*ch) != 0 {
		c.warnOnce.Do(func() {
			slog.Warn("audio: dropping misaligned pcm frame", "bytes", len(frame.Data), "format", frame.Format.String())
		})
		return Frame{Format: c.Target}
	}
	if frame.Format == c.Target {
		return frame
	}

	pcm := Resample(frame.Data, ch, frame.SampleRate, c.Target.SampleRate)
	switch {
	case ch == 1 && c.Target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case ch == 2 && c.Target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	return Frame{Data: pcm, Format: c.Target}
}

func sample(pcm []byte, i int) int16 {
	return int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
}

func putSample(pcm []byte, i int, s int16) {
	pcm[2*i] = byte(s)
	pcm[2*i+1] = byte(uint16(s) >> 8)
}

// Resample converts interleaved PCM with the given channel count from src to
// dst Hz using linear interpolation. Equal or invalid rates return pcm.
func Resample(pcm []byte, channels, src, dst int) []byte {
	if src <= 0 || dst <= 0 || src == dst || channels <= 0 {
		return pcm
	}
	inFrames := len(pcm) / (2 * channels)
	if inFrames == 0 {
		return pcm
	}
	outFrames := int(int64(inFrames) * int64(dst) / int64(src))
	out := make([]byte, outFrames*2*channels)
	step := float64(src) / float64(dst)

	for i := range outFrames {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := min(idx+1, inFrames-1)
		for c := range channels {
			a := float64(sample(pcm, idx*channels+c))
			b := float64(sample(pcm, next*channels+c))
			putSample(out, i*channels+c, int16(a+(b-a)*frac))
		}
	}
	return out
}

// MonoToStereo duplicates each sample into both channels.
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)
	for i := range n {
		s := sample(pcm, i)
		putSample(out, 2*i, s)
		putSample(out, 2*i+1, s)
	}
	return out
}

// StereoToMono averages left and right.
func StereoToMono(pcm []byte) []byte {
	n := len(pcm) / 4
	out := make([]byte, n*2)
	for i := range n {
		avg := (int32(sample(pcm, 2*i)) + int32(sample(pcm, 2*i+1))) / 2
		putSample(out, i, int16(avg))
	}
	return out
}
