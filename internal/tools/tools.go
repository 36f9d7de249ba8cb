// Package tools defines the in-process tools the interviewer model may call
// and the [Set] that dispatches model tool calls to them.
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/provider/llm"
)

// ErrUnknownTool is returned by [Set.Handle] for a name it does not hold.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Tool is a model-callable function together with its schema.
type Tool struct {
	// Definition is presented to the model.
	Definition llm.ToolDefinition

	// Handler receives the JSON-encoded arguments and returns the text the
	// model sees. It must be safe for concurrent use and honour ctx.
	Handler func(ctx context.Context, args string) (string, error)
}

// Set is an immutable collection of tools keyed by name.
type Set struct {
	order   []string
	tools   map[string]Tool
	metrics *observe.Metrics
}

// NewSet validates tools and indexes them by name. m may be nil.
func NewSet(m *observe.Metrics, tools ...Tool) (*Set, error) {
	s := &Set{tools: make(map[string]Tool, len(tools)), metrics: m}
	var errs []error
	for _, t := range tools {
		name := t.Definition.Name
		switch {
		case name == "":
			errs = append(errs, errors.New("tools: tool with empty name"))
			continue
		case t.Handler == nil:
			errs = append(errs, fmt.Errorf("tools: %s: nil handler", name))
			continue
		}
		if _, dup := s.tools[name]; dup {
			errs = append(errs, fmt.Errorf("tools: %s: registered twice", name))
			continue
		}
		s.tools[name] = t
		s.order = append(s.order, name)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Len reports the number of tools in the set. A nil Set is empty.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Definitions returns the tool schemas in registration order.
func (s *Set) Definitions() []llm.ToolDefinition {
	if s == nil {
		return nil
	}
	defs := make([]llm.ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, s.tools[name].Definition)
	}
	return defs
}

// Handle runs the named tool. Its signature matches s2s.ToolCallHandler.
func (s *Set) Handle(ctx context.Context, name, args string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	t, ok := s.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	ctx, span := observe.StartSpan(ctx, "tool."+name)
	defer span.End()

	start := time.Now()
	out, err := t.Handler(ctx, args)
	if s.metrics != nil {
		s.metrics.RecordToolCall(ctx, name, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("tools: %s: %w", name, err)
	}
	return out, nil
}
