package resilience

import (
	"context"
	"image"

	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
)

var _ imagegen.Provider = (*ImageGuard)(nil)

// ImageGuard wraps an image provider with a circuit breaker so a failing
// backend answers immediately instead of holding up the interviewer.
type ImageGuard struct {
	next    imagegen.Provider
	breaker *CircuitBreaker
}

// NewImageGuard wraps next.
func NewImageGuard(next imagegen.Provider, cfg CircuitBreakerConfig) *ImageGuard {
	if cfg.Name == "" {
		cfg.Name = "imagegen"
	}
	return &ImageGuard{next: next, breaker: NewCircuitBreaker(cfg)}
}

// Generate implements imagegen.Provider.
func (g *ImageGuard) Generate(ctx context.Context, req imagegen.Request) (image.Image, error) {
	return Call(g.breaker, func() (image.Image, error) {
		return g.next.Generate(ctx, req)
	})
}

// State reports the breaker state.
func (g *ImageGuard) State() State { return g.breaker.State() }
