package trip

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Normalize repairs the type mismatches models commonly emit in the
// extraction payload: numbers sent as strings and lists sent as strings.
// Unknown shapes pass through untouched; validation decides what to reject.
// The input map is modified in place and returned.
func Normalize(fields map[string]any) map[string]any {
	if fields == nil {
		return fields
	}

	for _, key := range []string{"days", "budget_eur"} {
		if s, ok := fields[key].(string); ok {
			if n, ok := digitsToInt(s); ok {
				fields[key] = n
			}
		}
	}

	if s, ok := fields["interests"].(string); ok {
		fields["interests"] = splitInterests(s)
	}

	return fields
}

func digitsToInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitInterests(s string) []any {
	var decoded []any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		return decoded
	}

	if strings.Contains(s, ",") {
		out := make([]any, 0)
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	if t := strings.TrimSpace(s); t != "" {
		return []any{t}
	}
	return []any{}
}
