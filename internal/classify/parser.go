package classify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// payload is the JSON container the model is instructed to return.
type payload struct {
	Results []Result `json:"results"`
}

// ParseResponse extracts the first well-formed results object from model
// output. Models wrap JSON in prose, markdown fences, or both; the parser
// scans for balanced JSON objects and accepts the first one that decodes
// into a non-empty results list.
func ParseResponse(text string) ([]Result, error) {
	for start := 0; start < len(text); {
		open := strings.IndexByte(text[start:], '{')
		if open < 0 {
			break
		}
		open += start

		end, ok := matchBrace(text, open)
		if !ok {
			start = open + 1
			continue
		}

		var p payload
		if err := json.Unmarshal([]byte(text[open:end+1]), &p); err == nil && len(p.Results) > 0 {
			return p.Results, nil
		}
		start = open + 1
	}
	return nil, fmt.Errorf("no results object found in model output")
}

// matchBrace returns the index of the brace closing the object opened at
// open, honoring JSON string and escape rules.
func matchBrace(text string, open int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := open; i < len(text); i++ {
		c := text[i]
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
				return i, true
			}
		}
	}
	return 0, false
}
