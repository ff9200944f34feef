package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON decodes the first JSON object or array in content into target.
// Models sometimes wrap the payload in a code fence or surround it with
// prose; anything before the opening brace and after the matching close is
// ignored.
func DecodeJSON(content string, target any) error {
	body := strings.TrimSpace(content)
	if body == "" {
		return errors.New("empty payload")
	}
	start := strings.IndexAny(body, "{[")
	if start < 0 {
		return fmt.Errorf("no json value in payload: %s", snippet(body))
	}
	dec := json.NewDecoder(strings.NewReader(body[start:]))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w (payload: %s)", err, snippet(body))
	}
	return nil
}

// snippet flattens s onto one line and caps it at 160 runes.
func snippet(s string) string {
	flat := strings.Join(strings.Fields(s), " ")
	if flat == "" {
		return "<empty>"
	}
	if runes := []rune(flat); len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	return flat
}
