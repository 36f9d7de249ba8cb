// Package memory stores interview records and their transcripts.
//
// A [Store] keeps one [Interview] per session together with the ordered list
// of finalised [Message] values. Appending is idempotent in two ways: a
// message whose transcript id is already present replaces the stored copy,
// and a new message whose normalised content was already seen in the same
// interview is reported as a duplicate and dropped. The second rule absorbs
// repeated finalisation events for the same utterance.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"unicode"
)

// ErrNotFound is returned when an interview id does not exist.
var ErrNotFound = errors.New("memory: interview not found")

// DefaultListLimit caps [Store.List] when the caller passes a non-positive
// limit.
const DefaultListLimit = 50

// Store persists interviews.
type Store interface {
	// Create inserts a new interview with an empty transcript. An empty status
	// defaults to [StatusInProgress].
	Create(ctx context.Context, status Status, config json.RawMessage) (Interview, error)

	// Get returns the interview with id, or [ErrNotFound].
	Get(ctx context.Context, id string) (Interview, error)

	// List returns up to limit interviews, newest first.
	List(ctx context.Context, limit int) ([]Interview, error)

	// Update applies u to the interview with id and returns the result.
	Update(ctx context.Context, id string, u Update) (Interview, error)

	// Delete removes the interview with id, or returns [ErrNotFound].
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every interview, or only those with status when it is
	// non-empty, and reports how many were removed.
	DeleteAll(ctx context.Context, status Status) (int, error)

	// AppendMessage adds msg to the transcript of interview id following the
	// package-level deduplication rules.
	AppendMessage(ctx context.Context, id string, msg Message) (AppendResult, error)
}

// Sanitize lowercases text and keeps only Unicode letters and digits.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// ContentHash returns the hex SHA-256 of "<interviewID>:<sanitized transcript>".
// Two transcripts that differ only in punctuation, spacing or case hash
// equally.
func ContentHash(interviewID, transcript string) string {
	sum := sha256.Sum256([]byte(interviewID + ":" + Sanitize(transcript)))
	return hex.EncodeToString(sum[:])
}

// NormalizeConfig maps an absent or JSON null config to nil.
func NormalizeConfig(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return json.RawMessage(trimmed)
}
