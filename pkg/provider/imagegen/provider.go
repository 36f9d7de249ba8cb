// Package imagegen defines the Provider interface for text-to-image backends
// used by the interviewer's image tool.
package imagegen

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrNoImage is returned when the backend answers without any image, for
	// example because the prompt was filtered.
	ErrNoImage = errors.New("imagegen: no image returned")

	// ErrNoAPIKey is returned when neither the request nor the provider
	// carries a credential.
	ErrNoAPIKey = errors.New("imagegen: no API key")
)

// Request is one image generation call.
type Request struct {
	Prompt string

	// APIKey overrides the provider's own credential. It carries the
	// candidate's key when they brought one.
	APIKey string
}

// Provider turns a text prompt into a decoded image.
//
// Implementations must be safe for concurrent use and must honour ctx
// cancellation.
type Provider interface {
	Generate(ctx context.Context, req Request) (image.Image, error)
}
