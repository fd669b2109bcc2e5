package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidJSON is returned when no JSON value could be recovered from a
// model response.
var ErrInvalidJSON = errors.New("invalid JSON response from model")

// DecodeJSON unmarshals a model response into out. It tolerates markdown code
// fences and prose around the first JSON object or array.
func DecodeJSON(raw string, out any) error {
	cleaned := strings.TrimSpace(raw)
	if i := strings.Index(cleaned, "```"); i >= 0 {
		body := cleaned[i+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		cleaned = strings.TrimSpace(body)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(cleaned, pair[0])
		end := strings.LastIndex(cleaned, pair[1])
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
				return nil
			}
		}
	}
	return ErrInvalidJSON
}
