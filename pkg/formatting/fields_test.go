package formatting_test

import (
	"testing"

	"github.com/courier-labs/courier/pkg/formatting"
)

func TestFieldString(t *testing.T) {
	fields := map[string]any{
		"invoice_number": "INV-001",
		"amount":         float64(1200.5),
		"whole":          float64(1200),
		"blank":          "  ",
		"missing_value":  nil,
		"flag":           true,
	}

	tests := []struct {
		name string
		keys []string
		want string
	}{
		{"first key wins", []string{"invoice_number", "amount"}, "INV-001"},
		{"falls through to second key", []string{"document_number", "invoice_number"}, "INV-001"},
		{"numeric value formatted", []string{"amount"}, "1200.5"},
		{"whole number drops fraction", []string{"whole"}, "1200"},
		{"blank value skipped", []string{"blank", "invoice_number"}, "INV-001"},
		{"nil value skipped", []string{"missing_value", "invoice_number"}, "INV-001"},
		{"non-string rendered", []string{"flag"}, "true"},
		{"no keys present", []string{"nope", "nada"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.FieldString(fields, tt.keys...); got != tt.want {
				t.Errorf("FieldString(%v) = %q, want %q", tt.keys, got, tt.want)
			}
		})
	}
}

func TestFieldFloat(t *testing.T) {
	fields := map[string]any{
		"total":      float64(450.75),
		"count":      7,
		"text_total": "123.45",
		"garbage":    "not-a-number",
		"empty":      nil,
	}

	tests := []struct {
		name   string
		keys   []string
		want   float64
		wantOK bool
	}{
		{"float value", []string{"total"}, 450.75, true},
		{"int value", []string{"count"}, 7, true},
		{"numeric string", []string{"text_total"}, 123.45, true},
		{"garbage string skipped", []string{"garbage", "total"}, 450.75, true},
		{"nil skipped", []string{"empty", "total"}, 450.75, true},
		{"absent keys", []string{"nope"}, 0, false},
		{"garbage only", []string{"garbage"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := formatting.FieldFloat(fields, tt.keys...)
			if ok != tt.wantOK {
				t.Fatalf("FieldFloat(%v) ok = %v, want %v", tt.keys, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("FieldFloat(%v) = %v, want %v", tt.keys, got, tt.want)
			}
		})
	}
}
