package completion

import (
	"encoding/json"
	"errors"
	"strings"
)

// ParseError means a response could not be read as the expected JSON object.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string { return "unparseable response: " + errText(e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

var errNotObject = errors.New("response is not a JSON object")

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	}
	return s
}

// DecodeObject extracts the JSON object from model output. Code fences are
// stripped first; if the remainder does not parse, the span from the first
// '{' to the last '}' is tried.
func DecodeObject(text string) (map[string]any, error) {
	clean := stripCodeFences(text)
	obj, err := decodeObject(clean)
	if err == nil {
		return obj, nil
	}
	start, end := strings.Index(clean, "{"), strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		if obj, err2 := decodeObject(clean[start : end+1]); err2 == nil {
			return obj, nil
		}
	}
	return nil, &ParseError{Text: text, Err: err}
}

func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}
