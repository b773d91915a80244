// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// ErrNoObject means the text contains no brace-delimited region.
var ErrNoObject = errors.New("no JSON object in model output")

// ExtractObject returns the substring between the first '{' and the last '}'
// inclusive. Models routinely wrap their JSON in prose or markdown fences;
// everything outside the outermost braces is discarded.
func ExtractObject(text string) (string, bool) {
	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	return text[first : last+1], true
}

// HasObjectStart reports whether text opens a JSON object anywhere.
func HasObjectStart(text string) bool {
	return strings.IndexByte(text, '{') != -1
}

// ParseObject extracts the embedded object from text and decodes it into T.
func ParseObject[T any](text string) (*T, error) {
	raw, ok := ExtractObject(text)
	if !ok {
		return nil, ErrNoObject
	}
	var result T
	if err := json.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedded JSON: %w. Extracted (truncated): %s", err, Truncate(raw, 200))
	}
	return &result, nil
}

// Truncate shortens s to at most maxLen bytes plus an ellipsis, for logging.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
