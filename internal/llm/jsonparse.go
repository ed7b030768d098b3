package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoObject is returned by ParseObject when no JSON object can be recovered.
var ErrNoObject = errors.New("no json object in model output")

// ParseObject decodes a JSON object from model output into v. The whole
// string is tried first; failing that, every balanced {...} span is tried in
// order of its opening brace, which recovers objects wrapped in prose or
// code fences.
func ParseObject(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), v) == nil {
		return nil
	}

	for start := strings.IndexByte(raw, '{'); start >= 0; {
		if end := matchBrace(raw, start); end > start {
			if json.Unmarshal([]byte(raw[start:end+1]), v) == nil {
				return nil
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return ErrNoObject
}

// matchBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are ignored.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
