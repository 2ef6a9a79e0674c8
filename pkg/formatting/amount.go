package formatting

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount parses a monetary amount string into a float64. Currency
// symbols, letter codes, and surrounding whitespace are ignored. Both
// "1,234.56" and "1.234,56" separator conventions are accepted: when both
// separators appear, the rightmost one is treated as the decimal mark;
// a lone comma followed by exactly two digits is treated as a decimal mark.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		default:
			return -1
		}
	}, s)

	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("invalid amount: %q", s)
	}

	dot := strings.LastIndex(cleaned, ".")
	comma := strings.LastIndex(cleaned, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case comma >= 0:
		if len(cleaned)-comma-1 == 2 && strings.Count(cleaned, ",") == 1 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %q", s)
	}
	return value, nil
}
