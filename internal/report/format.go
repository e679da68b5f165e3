package report

import (
	"encoding/json"
	"strconv"

	"calibra/internal/domain"
)

// IsPresent reports whether a looked-up value counts as present under policy.
func IsPresent(v any, ok bool, policy domain.PresencePolicy) bool {
	if !ok || v == nil {
		return false
	}
	if policy == domain.PresenceStrict {
		return true
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t != ""
		}
		return f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case bool:
		return t
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// FormatValue renders a field value for a report line.
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return compactJSON(v)
}
