package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)
	logger.Log(Event{
		Timestamp:  time.Now().UTC(),
		UserID:     "local",
		Tool:       "appsignals.list_services",
		Toolset:    "appsignals",
		Outcome:    "success",
		DurationMs: 42,
	})

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatalf("expected a log line")
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(line), &event); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if event["tool"] != "appsignals.list_services" {
		t.Fatalf("unexpected tool: %v", event["tool"])
	}
	if event["outcome"] != "success" {
		t.Fatalf("unexpected outcome: %v", event["outcome"])
	}
	if event["durationMs"].(float64) != 42 {
		t.Fatalf("unexpected durationMs: %v", event["durationMs"])
	}
	if event["level"] != "info" {
		t.Fatalf("unexpected level: %v", event["level"])
	}
}

func TestErrorOutcomeCarriesDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)
	logger.Log(Event{Tool: "appsignals.get_slo", Outcome: "error", Error: "boom", DurationMs: 7})

	var event map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event["error"] != "boom" {
		t.Fatalf("unexpected error: %v", event["error"])
	}
	duration, ok := event["durationMs"].(float64)
	if !ok || duration < 0 {
		t.Fatalf("expected non-negative durationMs, got %v", event["durationMs"])
	}
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)
	logger.Debugf("appsignals.list_services", "page retrieved")
	if buf.Len() != 0 {
		t.Fatalf("debug line should be suppressed: %q", buf.String())
	}

	logger = NewLogger(&buf, LevelDebug)
	logger.Debugf("appsignals.list_services", "page retrieved")
	if buf.Len() == 0 {
		t.Fatalf("debug line expected at debug level")
	}
}

func TestInfoSuppressedAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelError)
	logger.Log(Event{Tool: "appsignals.get_service", Outcome: "success"})
	if buf.Len() != 0 {
		t.Fatalf("info line should be suppressed: %q", buf.String())
	}
	logger.Errorf("appsignals.get_service", "failed")
	if buf.Len() == 0 {
		t.Fatalf("error line expected at error level")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"error":   LevelError,
		"":        LevelInfo,
		"unknown": LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestMarshalFailureDropsLine(t *testing.T) {
	original := jsonMarshal
	jsonMarshal = func(any) ([]byte, error) { return nil, errors.New("marshal failed") }
	defer func() { jsonMarshal = original }()

	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)
	logger.Log(Event{Tool: "appsignals.list_services"})
	if buf.Len() != 0 {
		t.Fatalf("expected no output on marshal failure")
	}
}
