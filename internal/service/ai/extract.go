package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips one layer of fenced code-block wrapping (with or
// without a language tag) and surrounding whitespace from raw model output,
// then verifies the remainder is valid JSON. Models are not guaranteed to
// emit bare JSON; this is the single place that unreliability is handled.
func ExtractJSON(raw string) (json.RawMessage, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = stripFence(cleaned)

	if cleaned == "" || !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedOutput, snippet(raw))
	}
	return json.RawMessage(cleaned), nil
}

// DecodeJSON extracts and unmarshals in one step.
func DecodeJSON(raw string, v any) error {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]

	// Optional language tag directly after the opening fence.
	i := 0
	for i < len(s) && (s[i] >= 'a' && s[i] <= 'z' || s[i] >= 'A' && s[i] <= 'Z') {
		i++
	}
	s = strings.TrimSpace(s[i:])
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
