package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vinayprograms/hekmatica/internal/reasoning"
)

// FallbackOutput is returned when a run completes without producing an answer.
const FallbackOutput = "No answer could be generated for this question."

const maxTemplateSuggestions = 2

func hasTemplateFields(a *reasoning.Answer) bool {
	return a.ExecutiveSummary != "" || a.DetailedExplanation != "" || len(a.KeyPoints) > 0
}

func writeSections(sb *strings.Builder, a *reasoning.Answer) {
	sb.WriteString("## Executive Summary\n")
	sb.WriteString(strings.TrimSpace(a.ExecutiveSummary))
	sb.WriteString("\n\n## Detailed Explanation\n")
	sb.WriteString(strings.TrimSpace(a.DetailedExplanation))
	sb.WriteString("\n\n## Key Points\n")
	for _, p := range a.KeyPoints {
		sb.WriteString("- " + strings.TrimSpace(p) + "\n")
	}
}

// RenderForCritique renders an answer into the markdown template the
// critique call reviews. Answers without template fields render as their
// cited text alone.
func RenderForCritique(a *reasoning.Answer) string {
	if a == nil {
		return ""
	}
	if !hasTemplateFields(a) {
		return a.CitedAnswer
	}
	var sb strings.Builder
	writeSections(&sb, a)
	sb.WriteString("\n## Complete Answer\n")
	sb.WriteString(strings.TrimSpace(a.CitedAnswer))
	return sb.String()
}

// FormatOutput renders the final answer for the user.
func FormatOutput(s State) string {
	a := s.Answer
	if a == nil {
		return FallbackOutput
	}

	var sb strings.Builder
	if hasTemplateFields(a) {
		writeSections(&sb, a)
		fmt.Fprintf(&sb, "\nConfidence Score: %.2f\n", a.ConfidenceScore)
	} else {
		sb.WriteString(strings.TrimSpace(a.CitedAnswer))
		sb.WriteString("\n")
	}

	if tf := s.TemplateFeedback; tf != nil && !tf.Followed {
		sb.WriteString("\nNote: this answer did not fully follow the expected template.\n")
		suggestions := tf.Suggestions
		if len(suggestions) > maxTemplateSuggestions {
			suggestions = suggestions[:maxTemplateSuggestions]
		}
		if len(suggestions) > 0 {
			sb.WriteString("Suggested improvements:\n")
			for _, sug := range suggestions {
				sb.WriteString("- " + strings.TrimSpace(sug) + "\n")
			}
		}
	}

	refs := sortedReferences(a.References)
	if len(refs) > 0 {
		sb.WriteString("\n## References\n")
		for _, r := range refs {
			fmt.Fprintf(&sb, "[%d] %s\n", r.Index, r.Source)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sortedReferences returns the references with a source, ordered by index.
func sortedReferences(refs []reasoning.Reference) []reasoning.Reference {
	out := make([]reasoning.Reference, 0, len(refs))
	for _, r := range refs {
		if strings.TrimSpace(r.Source) != "" {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
