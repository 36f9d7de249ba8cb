package agent

import (
	"slices"
	"strings"

	"github.com/MrWong99/mockinterview/pkg/provider/s2s"
)

// ChatContext is an immutable snapshot of conversation history. The zero
// value is an empty history.
type ChatContext struct {
	items []s2s.ContextItem
}

// NewChatContext returns a history holding copies of items. Items with
// blank content are dropped.
func NewChatContext(items ...s2s.ContextItem) ChatContext {
	out := make([]s2s.ContextItem, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Content) == "" {
			continue
		}
		out = append(out, it)
	}
	return ChatContext{items: out}
}

// Items returns a copy of the history, oldest first.
func (c ChatContext) Items() []s2s.ContextItem { return slices.Clone(c.items) }

// Len is the number of items.
func (c ChatContext) Len() int { return len(c.items) }

// Append returns a new history with items added at the end.
func (c ChatContext) Append(items ...s2s.ContextItem) ChatContext {
	return NewChatContext(append(slices.Clone(c.items), items...)...)
}

// Truncate returns the newest max items. max <= 0 returns c unchanged.
func (c ChatContext) Truncate(max int) ChatContext {
	if max <= 0 || len(c.items) <= max {
		return c
	}
	return ChatContext{items: slices.Clone(c.items[len(c.items)-max:])}
}
