package questions

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an expert technical interviewer API. You generate JSON-only responses containing interview questions based on deep context."

func roleDescription(role string) string {
	switch role {
	case "HR":
		return "Focus on behavioral questions, culture fit, soft skills, and the STAR method."
	case "Tech Lead":
		return "Focus on technical depth, system architecture, trade-offs, and engineering best practices."
	case "Team Lead":
		return "Focus on team dynamics, conflict resolution, mentorship, and technical leadership."
	case "CEO":
		return "Focus on company vision, ownership, business impact, and long-term potential."
	case "Peer":
		return "Focus on collaboration, code review quality, day-to-day work style, and team fit."
	}
	return "General interviewer focusing on role suitability."
}

func personalityTone(p string) string {
	switch p {
	case "Skeptical":
		return "Challenge assumptions, ask 'why' frequently, dig deep into edge cases, be harder to impress."
	case "Warm & Welcoming":
		return "Encouraging, open-ended, allow the candidate to shine, supportive tone."
	case "Cold & Formal":
		return "Professional, detached, strict, focuses purely on facts and answers."
	case "High-Energy":
		return "Enthusiastic, fast-paced, maybe interruptions, excited about the role."
	}
	return "Professional and neutral."
}

func modeInstruction(m string) string {
	switch m {
	case "Stress Test":
		return "Ask tough questions, simulate pressure, challenge answers immediately, test resilience."
	case "Coaching":
		return "Constructive tone, focus on identifying growth areas, hints can be more educational/guiding."
	case "Devil's Advocate":
		return "Consistently take the opposing view to test argumentation skills."
	}
	return "Standard interview flow."
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// UserPrompt renders the user message asking for n questions.
func UserPrompt(cfg Config, n int) string {
	lang := orDefault(cfg.Language, "English")
	difficulty := orDefault(string(cfg.Difficulty), "3")

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a question bank of %d interview questions.\n\n", n)

	b.WriteString("**Target Context:**\n")
	fmt.Fprintf(&b, "- **Candidate Role:** %s\n", cfg.CandidateRole)
	fmt.Fprintf(&b, "- **Experience Level:** %s\n", ExperienceText(cfg.ExperienceLevel))
	fmt.Fprintf(&b, "- **Job Description Summary:** %s\n", orDefault(cfg.JobDescription, "General role in tech"))
	fmt.Fprintf(&b, "- **Company Culture:** %s (Shape questions to fit this environment)\n\n", cfg.CompanyType)

	b.WriteString("**Interviewer Persona:**\n")
	fmt.Fprintf(&b, "- **Role:** %s (%s)\n", cfg.InterviewerRole, roleDescription(cfg.InterviewerRole))
	fmt.Fprintf(&b, "- **Personality:** %s (Tone: %s)\n", cfg.Personality, personalityTone(cfg.Personality))
	fmt.Fprintf(&b, "- **Mode:** %s (%s)\n", cfg.Mode, modeInstruction(cfg.Mode))
	fmt.Fprintf(&b, "- **Hidden Agenda:** %s (Subtly test for this if provided)\n\n", orDefault(cfg.UnspokenRequirements, "None"))

	b.WriteString("**Output Requirements:**\n")
	fmt.Fprintf(&b, "1. **Language:** Generate ALL content (questions, hints) in **%s**.\n", lang)
	fmt.Fprintf(&b, "2. **Complexity:** Difficulty level %s/5.\n", difficulty)
	b.WriteString("3. **Diversity:** Cover different categories suitable for the role (Technical, Behavioral, etc.).\n")
	fmt.Fprintf(&b, "4. **Hints:** Provide %d progressive hints for each question (1=Subtle, 2=Moderate, 3=Direct).\n\n", HintLevels)

	b.WriteString("**JSON Schema:**\n")
	fmt.Fprintf(&b, `{
  "questions": [
    {
      "question": "The question text in %[1]s",
      "category": "Category",
      "hints": [
        "Hint 1 (Subtle) in %[1]s",
        "Hint 2 (Moderate) in %[1]s",
        "Hint 3 (Direct) in %[1]s"
      ]
    }
  ]
}
`, lang)
	b.WriteString("\nReturn ONLY the JSON object.\n")
	return b.String()
}
