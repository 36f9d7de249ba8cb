package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MrWong99/mockinterview/internal/imaging"
	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

// ImageToolName is the name the model calls the image tool by.
const ImageToolName = "generate_image"

const (
	imageSuccess = "I've generated the image and sent it to your screen!"
	imageFailure = "Sorry, I couldn't generate that image. Error: "
)

// ImageSink delivers an encoded JPEG to the candidate.
type ImageSink interface {
	SendImage(ctx context.Context, jpeg []byte, prompt string) error
}

type imageConfig struct {
	timeout time.Duration
	maxW    int
	maxH    int
	metrics *observe.Metrics
	apiKey  string
}

// ImageOption configures [NewImageTool].
type ImageOption func(*imageConfig)

// WithImageTimeout bounds generation. Default: 60s.
func WithImageTimeout(d time.Duration) ImageOption {
	return func(c *imageConfig) { c.timeout = d }
}

// WithMaxSize sets the thumbnail bounding box. Default: 512x512.
func WithMaxSize(w, h int) ImageOption {
	return func(c *imageConfig) { c.maxW, c.maxH = w, h }
}

// WithImageMetrics records generation latency and provider outcomes on m.
func WithImageMetrics(m *observe.Metrics) ImageOption {
	return func(c *imageConfig) { c.metrics = m }
}

// WithImageAPIKey sends key with every generation request, overriding the
// provider's own credential.
func WithImageAPIKey(key string) ImageOption {
	return func(c *imageConfig) { c.apiKey = key }
}

type imageArgs struct {
	Prompt string `json:"prompt"`
}

// NewImageTool returns the generate_image tool. The handler never returns
// an error: failures are reported to the model as an apology so it can
// tell the candidate. A sink failure is only logged.
func NewImageTool(gen imagegen.Provider, sink ImageSink, opts ...ImageOption) Tool {
	cfg := imageConfig{timeout: 60 * time.Second, maxW: 512, maxH: 512}
	for _, o := range opts {
		o(&cfg)
	}

	handler := func(ctx context.Context, args string) (string, error) {
		var a imageArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return imageFailure + fmt.Sprintf("invalid arguments: %v", err), nil
		}
		if a.Prompt == "" {
			return imageFailure + "prompt must not be empty", nil
		}

		img, err := generate(ctx, gen, a.Prompt, &cfg)
		if err != nil {
			observe.Logger(ctx).Warn("image generation failed", "err", err)
			return imageFailure + err.Error(), nil
		}

		data, err := imaging.ThumbnailJPEG(img, cfg.maxW, cfg.maxH)
		if err != nil {
			observe.Logger(ctx).Warn("image encoding failed", "err", err)
			return imageFailure + err.Error(), nil
		}

		if err := sink.SendImage(ctx, data, a.Prompt); err != nil {
			observe.Logger(ctx).Error("failed to send generated image", "err", err, "bytes", len(data))
		}
		return imageSuccess, nil
	}

	return Tool{
		Definition: llm.ToolDefinition{
			Name:        ImageToolName,
			Description: "Generate an image using Nano Banana and send it to the user",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{
						"type":        "string",
						"description": "Creative description of the image.",
					},
				},
				"required": []string{"prompt"},
			},
		},
		Handler: handler,
	}
}

type genResult struct {
	img image.Image
	err error
}

// generate runs gen off the caller's goroutine so that a backend ignoring
// ctx cannot hold the call past the deadline.
func generate(ctx context.Context, gen imagegen.Provider, prompt string, cfg *imageConfig) (image.Image, error) {
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan genResult, 1)
	go func() {
		img, err := gen.Generate(ctx, imagegen.Request{Prompt: prompt, APIKey: cfg.apiKey})
		done <- genResult{img, err}
	}()

	var res genResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err == nil && res.img == nil {
		res.err = imagegen.ErrNoImage
	}

	if cfg.metrics != nil {
		cfg.metrics.ImageGenerationDuration.Record(ctx, time.Since(start).Seconds())
		cfg.metrics.RecordProviderRequest(ctx, "imagegen", "image", res.err)
	}
	if errors.Is(res.err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("image generation timed out after %s", cfg.timeout)
	}
	return res.img, res.err
}
