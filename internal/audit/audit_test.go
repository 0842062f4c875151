package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"accessd.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}

func TestRecorderWritesStructuredEvent(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-123")
	NewRecorder().Record(ctx, Event{
		Name:    "auth.login",
		Subject: "alice",
		Outcome: "failure",
		Reason:  "password mismatch",
		Fields:  map[string]any{"attempt": 2},
	})

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" || entry["event"] != "auth.login" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["subject"] != "alice" || entry["outcome"] != "failure" {
		t.Fatalf("unexpected subject/outcome: %v", entry)
	}
	if entry["reason"] != "password mismatch" {
		t.Fatalf("unexpected reason: %v", entry["reason"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["attempt"] != float64(2) {
		t.Fatalf("unexpected fields: %v", entry)
	}
}

func TestLoginHelpersSetOutcome(t *testing.T) {
	buf := captureLog(t)
	r := NewRecorder()
	ctx := context.Background()

	r.LoginSucceeded(ctx, "alice")
	r.LoginFailed(ctx, "bob", "unknown user")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected two log lines, got %d", len(lines))
	}

	var success, failure map[string]any
	if err := json.Unmarshal(lines[0], &success); err != nil {
		t.Fatalf("success line not JSON: %v", err)
	}
	if err := json.Unmarshal(lines[1], &failure); err != nil {
		t.Fatalf("failure line not JSON: %v", err)
	}
	if success["outcome"] != "success" || success["subject"] != "alice" {
		t.Fatalf("unexpected success event: %v", success)
	}
	if failure["outcome"] != "failure" || failure["reason"] != "unknown user" {
		t.Fatalf("unexpected failure event: %v", failure)
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := context.Background()
	if got := requestIDFromContext(WithRequestID(ctx, "   ")); got != "" {
		t.Fatalf("expected blank id ignored, got %q", got)
	}
	if got := requestIDFromContext(WithRequestID(ctx, "req-1")); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
}
