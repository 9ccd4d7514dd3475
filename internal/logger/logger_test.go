package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONEnabled(t *testing.T) {
	l := New(false)
	if l.JSONEnabled() {
		t.Fatal("expected false")
	}
	l = New(true)
	if !l.JSONEnabled() {
		t.Fatal("expected true")
	}
}

func TestEmitPlainIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{json: false, out: &buf}
	l.Info("tenant applied", map[string]any{"tenant_id": "a"})

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO] tenant applied ") {
		t.Fatalf("unexpected plain line: %q", line)
	}
	if !strings.Contains(line, `"tenant_id":"a"`) {
		t.Fatalf("expected tenant_id field in line: %q", line)
	}
}

func TestEmitJSONIncludesLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{json: true, out: &buf}
	l.Error("flush failed", map[string]any{"job_id": "job-1"})

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "ERROR" || payload["msg"] != "flush failed" || payload["job_id"] != "job-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestWithMergesFieldsWithoutMutatingParent(t *testing.T) {
	var buf bytes.Buffer
	parent := &Logger{json: true, out: &buf}
	child := parent.With(map[string]any{"job_id": "job-1"})

	child.Warn("hook failed", map[string]any{"error": "boom"})
	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["job_id"] != "job-1" || payload["error"] != "boom" {
		t.Fatalf("expected child fields merged, got %+v", payload)
	}

	buf.Reset()
	parent.Warn("no job context here", nil)
	if strings.Contains(buf.String(), "job_id") {
		t.Fatal("With must not mutate the parent logger's fields")
	}
}
