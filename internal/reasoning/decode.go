package reasoning

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// ErrEmptyResponse is returned when the service replies with no content.
	ErrEmptyResponse = errors.New("empty response from reasoning service")
	// ErrMalformedResponse is returned when a reply cannot be decoded even after repair.
	ErrMalformedResponse = errors.New("malformed response from reasoning service")
)

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object or array in content.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if i := strings.Index(s, "```"); i != -1 {
		rest := s[i+3:]
		if nl := strings.Index(rest, "\n"); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	if end := strings.LastIndexByte(s, closer); end > start {
		return s[start : end+1]
	}
	return s[start:]
}

// decodeJSON unmarshals the JSON carried in content into v, repairing it
// once if the first attempt fails with a syntax error.
func decodeJSON(content string, v any) error {
	raw := extractJSON(content)
	err := json.Unmarshal([]byte(raw), v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return repairErr
	}
	return json.Unmarshal([]byte(fixed), v)
}
