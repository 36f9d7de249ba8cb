// Package mock provides a test double for imagegen.Provider.
package mock

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
)

var _ imagegen.Provider = (*Provider)(nil)

// Provider is a mock implementation of imagegen.Provider.
type Provider struct {
	mu sync.Mutex

	// Image is returned by Generate. If nil and Err is nil, a solid 64x64
	// image is returned.
	Image image.Image

	// Err, if non-nil, is returned by Generate.
	Err error

	// Block, when non-nil, makes Generate wait until it is closed or ctx is
	// done.
	Block chan struct{}

	// Requests records every request passed to Generate.
	Requests []imagegen.Request
}

// Generate records req and returns the configured result.
func (p *Provider) Generate(ctx context.Context, req imagegen.Request) (image.Image, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	img, err, block := p.Image, p.Err, p.Block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if img == nil {
		img = Solid(64, 64, color.RGBA{R: 200, G: 80, B: 40, A: 255})
	}
	return img, nil
}

// Calls returns the number of Generate calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// LastRequest returns the most recent request, or the zero Request.
func (p *Provider) LastRequest() imagegen.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return imagegen.Request{}
	}
	return p.Requests[len(p.Requests)-1]
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}
