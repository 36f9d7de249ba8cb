package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/mockinterview/pkg/provider/imagegen"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
	"github.com/MrWong99/mockinterview/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider of type T from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	s2s   map[string]Factory[s2s.Provider]
	image map[string]Factory[imagegen.Provider]
	llm   map[string]Factory[llm.Provider]
	vad   map[string]Factory[vad.Engine]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		s2s:   make(map[string]Factory[s2s.Provider]),
		image: make(map[string]Factory[imagegen.Provider]),
		llm:   make(map[string]Factory[llm.Provider]),
		vad:   make(map[string]Factory[vad.Engine]),
	}
}

func register[T any](r *Registry, m map[string]Factory[T], name string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[name] = f
}

func create[T any](r *Registry, m map[string]Factory[T], kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	f, ok := m[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return f(entry)
}

// RegisterS2S registers a speech-to-speech provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterS2S(name string, f Factory[s2s.Provider]) { register(r, r.s2s, name, f) }

// RegisterImage registers an image generator factory under name.
func (r *Registry) RegisterImage(name string, f Factory[imagegen.Provider]) {
	register(r, r.image, name, f)
}

// RegisterLLM registers a text LLM factory under name.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) { register(r, r.llm, name, f) }

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, f Factory[vad.Engine]) { register(r, r.vad, name, f) }

// CreateS2S instantiates the s2s provider registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered.
func (r *Registry) CreateS2S(entry ProviderEntry) (s2s.Provider, error) {
	return create(r, r.s2s, "s2s", entry)
}

// CreateImage instantiates the image generator registered under entry.Name.
func (r *Registry) CreateImage(entry ProviderEntry) (imagegen.Provider, error) {
	return create(r, r.image, "image", entry)
}

// CreateLLM instantiates the LLM registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateVAD instantiates the VAD engine registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	return create(r, r.vad, "vad", entry)
}

// Names returns the registered provider names per kind.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string][]string{}
	for n := range r.s2s {
		out["s2s"] = append(out["s2s"], n)
	}
	for n := range r.image {
		out["image"] = append(out["image"], n)
	}
	for n := range r.llm {
		out["llm"] = append(out["llm"], n)
	}
	for n := range r.vad {
		out["vad"] = append(out["vad"], n)
	}
	return out
}
