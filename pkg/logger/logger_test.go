package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	l.Info("ingested", String("kind", "quote"), Int("count", 3), Float64("ratio", 0.5), Error(errors.New("boom")))

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if out["message"] != "ingested" || out["kind"] != "quote" || out["count"] != float64(3) {
		t.Fatalf("unexpected log line %v", out)
	}
	if out["ratio"] != 0.5 || out["error"] != "boom" {
		t.Fatalf("unexpected log line %v", out)
	}
}

func TestWithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).With(String("component", "fanout"))
	l.Warn("dropped")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out["component"] != "fanout" || out["level"] != "warn" {
		t.Fatalf("unexpected log line %v", out)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}
