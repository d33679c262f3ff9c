// Package reasoning provides the client for the reasoning service that backs
// every judgement in the research workflow: clarification, decomposition,
// planning, ranking, answer synthesis and critique.
package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tool identifies a retrieval tool a plan step invokes.
type Tool int

const (
	ToolWebSearch Tool = iota + 1
	ToolPriceLookup
)

// String returns the canonical tool name.
func (t Tool) String() string {
	switch t {
	case ToolWebSearch:
		return "WebSearch"
	case ToolPriceLookup:
		return "PriceLookup"
	default:
		return fmt.Sprintf("Tool(%d)", int(t))
	}
}

// ParseTool maps the names the service emits onto a Tool.
func ParseTool(s string) (Tool, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.TrimSpace(s)))
	switch norm {
	case "websearch", "search", "web":
		return ToolWebSearch, nil
	case "pricelookup", "price", "getprice":
		return ToolPriceLookup, nil
	default:
		return 0, fmt.Errorf("unknown tool %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tool) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tool) UnmarshalText(b []byte) error {
	parsed, err := ParseTool(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Clarification is the service's verdict on whether the question is ambiguous.
type Clarification struct {
	Needed   bool   `json:"needed"`
	Question string `json:"question"`
}

// PlanStep pairs a tool with the query to run through it.
type PlanStep struct {
	Tool  Tool   `json:"tool"`
	Query string `json:"query"`
}

// Plan is the ordered list of retrieval actions for a question.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// RankedResult is a retrieval result with the relevance the service assigned it.
type RankedResult struct {
	Content        string  `json:"content,omitempty"`
	Link           string  `json:"link,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ContextItem is one piece of evidence handed to answer synthesis.
// Source is empty when the evidence has no link.
type ContextItem struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// Reference maps a citation index used in the answer to its source.
type Reference struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
}

// Answer is a structured, cited answer.
type Answer struct {
	ExecutiveSummary    string      `json:"executive_summary"`
	DetailedExplanation string      `json:"detailed_explanation"`
	KeyPoints           []string    `json:"key_points"`
	CitedAnswer         string      `json:"cited_answer"`
	ConfidenceScore     float64     `json:"confidence_score"`
	References          []Reference `json:"references"`
}

// SectionFeedback holds per-section remarks keyed by section name.
type SectionFeedback map[string]string

// UnmarshalJSON accepts either an object of section remarks or a single
// string, which is stored under "general".
func (f *SectionFeedback) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err == nil {
		*f = m
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("section feedback: expected object or string")
	}
	if s == "" {
		*f = nil
		return nil
	}
	*f = SectionFeedback{"general": s}
	return nil
}

// Critique is the service's quality assessment of an answer.
type Critique struct {
	IsGood                 bool            `json:"is_good"`
	MissingInfo            string          `json:"missing_info"`
	TemplateFollowed       bool            `json:"template_followed"`
	SectionFeedback        SectionFeedback `json:"section_feedback,omitempty"`
	ImprovementSuggestions []string        `json:"improvement_suggestions"`
}

// Operation names one of the six reasoning calls.
type Operation string

const (
	OpClarify    Operation = "clarify"
	OpSubqueries Operation = "subqueries"
	OpPlan       Operation = "plan"
	OpRank       Operation = "rank"
	OpAnswer     Operation = "answer"
	OpCritique   Operation = "critique"
)
