package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestComponentIsStamped(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(ConfigFromEnv("info", "json", buf)).WithComponent(ComponentLedger)

	logger.Debug("hidden")
	logger.Info("Payment recorded", FieldTaskID, "t1")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d", len(lines))
	}
	if lines[0][FieldComponent] != ComponentLedger || lines[0][FieldTaskID] != "t1" {
		t.Fatalf("unexpected record: %v", lines[0])
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Fatal("missing logger should fall back to the default")
	}
	l := Discard().WithComponent(ComponentHTTP)
	if got := FromContext(WithLogger(context.Background(), l)); got != l {
		t.Fatal("expected the stored logger")
	}
}

func TestRequestCompletedLevels(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{200, "INFO"},
		{404, "WARN"},
		{503, "ERROR"},
	}
	for _, tc := range cases {
		buf := &bytes.Buffer{}
		rl := NewRequestLogger(New(ConfigFromEnv("info", "json", buf)).WithComponent(ComponentHTTP))
		r := httptest.NewRequest("GET", "/api/tasks?q=x", nil)

		rl.Completed(context.Background(), r, tc.status, 12, "10.0.0.1")

		lines := decodeLines(t, buf)
		if len(lines) != 1 {
			t.Fatalf("status %d: expected 1 line, got %d", tc.status, len(lines))
		}
		rec := lines[0]
		if rec["level"] != tc.level {
			t.Errorf("status %d: level = %v, want %s", tc.status, rec["level"], tc.level)
		}
		if rec[FieldPath] != "/api/tasks" || rec[FieldQuery] != "q=x" || rec[FieldClientIP] != "10.0.0.1" {
			t.Errorf("status %d: unexpected fields %v", tc.status, rec)
		}
		if rec[FieldSuccess] != (tc.status < 400) {
			t.Errorf("status %d: success = %v", tc.status, rec[FieldSuccess])
		}
	}
}
