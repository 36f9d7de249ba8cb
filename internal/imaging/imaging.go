// Package imaging scales generated images down for transport and encodes them
// as JPEG.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// JPEGQuality is the quality used by [EncodeJPEG].
const JPEGQuality = 90

// Thumbnail returns img scaled to fit within maxW x maxH, keeping its aspect
// ratio. Images that already fit are returned unchanged; they are never
// enlarged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	nw, nh := w, h
	if nw > maxW {
		nh = max(nh*maxW/nw, 1)
		nw = maxW
	}
	if nh > maxH {
		nw = max(nw*maxH/nh, 1)
		nh = maxH
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEG encodes img at [JPEGQuality].
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("imaging: encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ThumbnailJPEG is Thumbnail followed by EncodeJPEG.
func ThumbnailJPEG(img image.Image, maxW, maxH int) ([]byte, error) {
	return EncodeJPEG(Thumbnail(img, maxW, maxH))
}
