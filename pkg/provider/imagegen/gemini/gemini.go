// Package gemini implements imagegen.Provider with Google's Imagen models via
// the google.golang.org/genai SDK.
//
// A genai client is built lazily for each API key in use, so candidates who
// bring their own key are billed on it.
package gemini

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
)

var _ imagegen.Provider = (*Provider)(nil)

// DefaultModel is the Imagen model used when none is configured.
const DefaultModel = "imagen-4.0-fast-generate-001"

// maxClients bounds the per-key client cache. It is cleared when full.
const maxClients = 64

// Option configures a Provider.
type Option func(*Provider)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL points the client at a different API host. Used in tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider generates images through the Gemini API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// New creates a Provider. apiKey is the fallback credential and may be empty
// when every request carries its own.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{apiKey: apiKey, model: DefaultModel, clients: make(map[string]*genai.Client)}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) client(ctx context.Context, key string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("imagegen/gemini: new client: %w", err)
	}
	if len(p.clients) >= maxClients {
		clear(p.clients)
	}
	p.clients[key] = c
	return c, nil
}

// Generate requests a single JPEG for req.Prompt and decodes it.
func (p *Provider) Generate(ctx context.Context, req imagegen.Request) (image.Image, error) {
	key := req.APIKey
	if key == "" {
		key = p.apiKey
	}
	if key == "" {
		return nil, imagegen.ErrNoAPIKey
	}
	client, err := p.client(ctx, key)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateImages(ctx, p.model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen/gemini: generate: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 ||
		resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, imagegen.ErrNoImage
	}

	img, _, err := image.Decode(bytes.NewReader(resp.GeneratedImages[0].Image.ImageBytes))
	if err != nil {
		return nil, fmt.Errorf("imagegen/gemini: decode: %w", err)
	}
	return img, nil
}
