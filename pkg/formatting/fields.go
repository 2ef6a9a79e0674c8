package formatting

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldString returns the first of the named keys present in fields
// with a non-empty value, rendered as a trimmed string. Numeric JSON
// values are formatted without a trailing fractional zero run.
func FieldString(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}

		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = strings.TrimSpace(fmt.Sprint(t))
		}

		if s != "" {
			return s
		}
	}
	return ""
}

// FieldFloat returns the first of the named keys present in fields with
// a numeric value. String values that parse as numbers count; anything
// else is skipped.
func FieldFloat(fields map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := fields[key]
		if !ok || v == nil {
			continue
		}

		switch t := v.(type) {
		case float64:
			return t, true
		case int:
			return float64(t), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
