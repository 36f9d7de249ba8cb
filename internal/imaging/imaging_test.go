package imaging_test

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/MrWong99/mockinterview/internal/imaging"
)

func TestThumbnail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"square large", 1024, 1024, 512, 512},
		{"landscape", 1600, 900, 512, 288},
		{"portrait", 900, 1600, 288, 512},
		{"already small", 300, 200, 300, 200},
		{"exact fit", 512, 512, 512, 512},
		{"wide strip", 4000, 10, 512, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := imaging.Thumbnail(src, 512, 512).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestThumbnail_NoUpscaleReturnsSame(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	if imaging.Thumbnail(src, 512, 512) != image.Image(src) {
		t.Error("small image should be returned unchanged")
	}
}

func TestThumbnailJPEG_Decodes(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 800, 600))
	data, err := imaging.ThumbnailJPEG(src, 512, 512)
	if err != nil {
		t.Fatalf("ThumbnailJPEG: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 512 || cfg.Height != 384 {
		t.Errorf("decoded size = %dx%d, want 512x384", cfg.Width, cfg.Height)
	}
}
