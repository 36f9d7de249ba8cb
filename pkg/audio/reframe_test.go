package audio_test

import (
	"bytes"
	"testing"

	"github.com/MrWong99/mockinterview/pkg/audio"
)

func TestReframer(t *testing.T) {
	t.Parallel()

	r := audio.NewReframer(4)
	if got := r.Write([]byte{1, 2, 3}); len(got) != 0 {
		t.Fatalf("short write emitted %d frames", len(got))
	}
	if r.Pending() != 3 {
		t.Errorf("Pending = %d, want 3", r.Pending())
	}

	got := r.Write([]byte{4, 5, 6, 7, 8, 9, 10})
	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte{1, 2, 3, 4}) || !bytes.Equal(got[1], []byte{5, 6, 7, 8}) {
		t.Errorf("frames = %v", got)
	}
	if r.Pending() != 2 {
		t.Errorf("Pending = %d, want 2", r.Pending())
	}

	// Emitted frames do not alias the internal buffer.
	got[0][0] = 99
	r.Reset()
	if r.Pending() != 0 {
		t.Errorf("Pending after Reset = %d", r.Pending())
	}
	next := r.Write([]byte{11, 12, 13, 14})
	if len(next) != 1 || !bytes.Equal(next[0], []byte{11, 12, 13, 14}) {
		t.Errorf("after reset = %v", next)
	}
}

func TestReframer_ZeroSizePassesThrough(t *testing.T) {
	t.Parallel()

	r := audio.NewReframer(0)
	in := []byte{1, 2, 3}
	got := r.Write(in)
	if len(got) != 1 || !bytes.Equal(got[0], in) {
		t.Errorf("got %v", got)
	}
	in[0] = 9
	if got[0][0] != 1 {
		t.Error("output aliases input")
	}
}
