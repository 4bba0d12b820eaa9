package redact

import (
	"strings"
	"testing"
)

func TestRedactString(t *testing.T) {
	r := New()
	out := r.RedactString("token AKIAIOSFODNN7EXAMPLEKEY955 in payload")
	if strings.Contains(out, "AKIAIOSFODNN7EXAMPLEKEY955") {
		t.Fatalf("token not redacted: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction marker: %s", out)
	}
}

func TestRedactValueNested(t *testing.T) {
	r := New()
	value := map[string]any{
		"short": "ok",
		"nested": []any{
			map[string]any{"secret": "eyJhbGciOi.eyJzdWIiOi.abc123xyz"},
		},
	}
	out := r.RedactValue(value).(map[string]any)
	if out["short"] != "ok" {
		t.Fatalf("short value should pass through: %v", out["short"])
	}
	nested := out["nested"].([]any)[0].(map[string]any)
	if !strings.Contains(nested["secret"].(string), "[REDACTED]") {
		t.Fatalf("nested secret not redacted: %v", nested["secret"])
	}
}

func TestRedactValueSliceOfMaps(t *testing.T) {
	r := New()
	input := []map[string]any{
		{"accessKey": "AKIAIOSFODNN7EXAMPLEKEY12345", "service": "api"},
	}
	out := r.RedactValue(input).([]map[string]any)
	if out[0]["accessKey"] != "[REDACTED]" {
		t.Fatalf("token survived redaction: %v", out[0]["accessKey"])
	}
	if out[0]["service"] != "api" {
		t.Fatalf("short value should pass through: %v", out[0]["service"])
	}
}

func TestRedactValueStringSlice(t *testing.T) {
	r := New()
	out := r.RedactValue([]string{"api", "AKIAIOSFODNN7EXAMPLEKEY12345"}).([]string)
	if out[0] != "api" || out[1] != "[REDACTED]" {
		t.Fatalf("unexpected slice redaction: %v", out)
	}
}

func TestNonStringValuesUntouched(t *testing.T) {
	r := New()
	if r.RedactValue(42) != 42 {
		t.Fatalf("numbers should pass through")
	}
	if r.RedactValue(true) != true {
		t.Fatalf("booleans should pass through")
	}
}
