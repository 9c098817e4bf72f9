package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNoopLogger(t *testing.T) {
	logger := Noop()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("noop logger panicked: %v", r)
		}
	}()
	logger.Debug("test message", "arg1", "arg2")
	logger.Info("test message", "arg1", "arg2")
	logger.Warn("test message", "arg1", "arg2")
	logger.Error("test message", "arg1", "arg2")
}

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", FormatJSON)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info("commit", "events", 3, "driver", "memory")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "commit" || entry["driver"] != "memory" || entry["events"] != float64(3) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", FormatText)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New(nil, "loud", FormatText); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(nil, "info", Format("xml")); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestFieldsOddArguments(t *testing.T) {
	fields := Fields("a", 1, 2, "b", "dangling")
	if fields["a"] != 1 || fields["2"] != "b" || fields["!BADKEY"] != "dangling" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
