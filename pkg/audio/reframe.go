package audio

// Reframer cuts an arbitrary stream of PCM chunks into fixed-size frames.
// It is not safe for concurrent use.
type Reframer struct {
	size int
	buf  []byte
}

// NewReframer returns a Reframer emitting frames of size bytes.
func NewReframer(size int) *Reframer {
	return &Reframer{size: size, buf: make([]byte, 0, 2*size)}
}

// Write appends chunk and returns every complete frame now available. The
// returned slices are freshly allocated.
func (r *Reframer) Write(chunk []byte) [][]byte {
	if r.size <= 0 {
		return [][]byte{append([]byte(nil), chunk...)}
	}
	r.buf = append(r.buf, chunk...)
	var out [][]byte
	for len(r.buf) >= r.size {
		out = append(out, append([]byte(nil), r.buf[:r.size]...))
		r.buf = r.buf[r.size:]
	}
	if len(r.buf) == 0 {
		r.buf = r.buf[:0:cap(r.buf)]
	}
	return out
}

// Pending reports the number of buffered bytes not yet emitted.
func (r *Reframer) Pending() int { return len(r.buf) }

// Reset discards buffered bytes.
func (r *Reframer) Reset() { r.buf = r.buf[:0] }
