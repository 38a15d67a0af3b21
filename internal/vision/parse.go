package vision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedObject extracts a JSON object wrapped in a markdown code fence.
var fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// parseAnswer decodes a model reply into T. Replies wrapped in a code fence or
// surrounded by prose are narrowed to the outermost JSON object first.
func parseAnswer[T any](reply string) (*T, error) {
	reply = strings.TrimSpace(reply)
	candidate := reply

	switch {
	case strings.HasPrefix(reply, "```"):
		if m := fencedObject.FindStringSubmatch(reply); len(m) > 1 {
			candidate = m[1]
		}
	case !strings.HasPrefix(reply, "{"):
		first, last := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
		if first != -1 && last > first {
			candidate = reply[first : last+1]
		}
	}

	var out T
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("failed to decode model answer: %w. Extracted JSON (truncated): %s", err, truncate(candidate, 300))
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
