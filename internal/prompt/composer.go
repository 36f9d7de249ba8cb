package prompt

import (
	"cmp"
	"fmt"
	"strings"
)

const (
	// FallbackInstructions is returned by [Compose] when no fragment applies.
	FallbackInstructions = "You are a helpful assistant."

	// MaxJobDescriptionRunes bounds the job description carried into the
	// system prompt.
	MaxJobDescriptionRunes = 500

	defaultCandidateRole   = "Candidate"
	defaultExperienceLevel = "N/A"
)

// Request carries the interview metadata consumed by [Compose]. Empty fields
// are treated as absent.
type Request struct {
	InterviewerRole string
	Personality     string
	Mode            string
	Language        string
	Difficulty      string
	GenderPrompt    string

	CandidateRole   string
	ExperienceLevel string
	JobDescription  string
}

func (r Request) label(dim Dimension) string {
	switch dim {
	case Role:
		return r.InterviewerRole
	case Personality:
		return r.Personality
	case Mode:
		return r.Mode
	case Language:
		return r.Language
	case Difficulty:
		return r.Difficulty
	case Gender:
		return r.GenderPrompt
	}
	return ""
}

// Compose flattens r into a single instruction string using the fragments in
// c. The result is never empty.
func Compose(c Catalog, r Request) string {
	parts := make([]string, 0, len(Dimensions)+2)
	for _, dim := range Dimensions {
		parts = append(parts, c.Lookup(dim, r.label(dim)))
	}

	role := cmp.Or(r.CandidateRole, defaultCandidateRole)
	exp := cmp.Or(r.ExperienceLevel, defaultExperienceLevel)
	parts = append(parts, fmt.Sprintf("Context: Interviewing a %s with %s years of experience.", role, exp))

	if jd := CleanJobDescription(r.JobDescription); jd != "" {
		parts = append(parts, "Job Description: "+jd)
	}

	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return FallbackInstructions
	}
	return out
}

// CleanJobDescription makes free-text job descriptions safe to embed in the
// session setup payload: double quotes become single quotes, line breaks
// become spaces, and the text is capped at [MaxJobDescriptionRunes].
func CleanJobDescription(s string) string {
	if s == "" {
		return ""
	}
	s = strings.NewReplacer(`"`, "'", "\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	if r := []rune(s); len(r) > MaxJobDescriptionRunes {
		s = string(r[:MaxJobDescriptionRunes])
	}
	return s
}
