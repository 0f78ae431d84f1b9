package consolidation

import (
	"regexp"
	"strings"

	"github.com/evoagent/core/pkg/knowledge"
	"github.com/evoagent/core/pkg/sessionlog"
)

// categoryMarkers maps a knowledge category to the substrings whose
// presence in an event's text suggests that category: decision markers
// plus a minimal code-shape heuristic for pattern candidates.
var categoryMarkers = map[knowledge.Category][]string{
	knowledge.CategoryPits: {
		"panic", "crash", "nil pointer", "race condition", "deadlock",
		"stack trace", "exception",
	},
	knowledge.CategoryDecisions: {
		"decided to", "decision:", "chose", "we will use", "opted for",
		"going with",
	},
	knowledge.CategorySolutions: {
		"fixed by", "resolved by", "workaround:", "solution:", "the fix was",
	},
	knowledge.CategoryPatterns: {
		"pattern:", "consistently", "repeatedly",
	},
}

var codeFence = regexp.MustCompile("```[a-zA-Z]*\\n")

// candidate is one pattern extracted from a single session, before
// cross-session aggregation.
type candidate struct {
	Category  knowledge.Category
	Title     string
	Tokens    []string
	SessionID string
}

// extractCandidates scans a session's events for category markers and
// code-shaped content: pattern candidates drawn from event payloads via
// code-shape heuristics plus decision markers.
func extractCandidates(sessionID string, events []sessionlog.Event) []candidate {
	var out []candidate
	for _, evt := range events {
		text := eventText(evt)
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)

		if codeFence.MatchString(text) {
			out = append(out, candidate{
				Category:  knowledge.CategoryPatterns,
				Title:     summarize(text),
				Tokens:    tokenize(lower),
				SessionID: sessionID,
			})
		}

		for category, markers := range categoryMarkers {
			for _, marker := range markers {
				if strings.Contains(lower, marker) {
					out = append(out, candidate{
						Category:  category,
						Title:     summarize(text),
						Tokens:    tokenize(lower),
						SessionID: sessionID,
					})
					break
				}
			}
		}
	}
	return out
}

// eventText concatenates the string-valued fields of an event's Data
// map into a single scan target.
func eventText(evt sessionlog.Event) string {
	var b strings.Builder
	for _, v := range evt.Data {
		if s, ok := v.(string); ok {
			b.WriteString(s)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	return wordRe.FindAllString(text, -1)
}

// summarize builds a short title from the first line of text.
func summarize(text string) string {
	line := strings.SplitN(strings.TrimSpace(text), "\n", 2)[0]
	if len(line) > 80 {
		line = line[:80]
	}
	return strings.TrimSpace(line)
}

// slugify turns title into a filesystem-safe slug.
func slugify(title string) string {
	lower := strings.ToLower(title)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "pattern"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}
