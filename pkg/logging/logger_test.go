package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newJSONLogger(buf *bytes.Buffer, level Level) Logger {
	return NewLogger(&Config{
		Level:       level,
		ServiceName: "qidlink-test",
		JSONFormat:  true,
		Output:      buf,
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse JSON output %q: %v", buf.String(), err)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level to be info, got %s", cfg.Level)
	}
	if cfg.ServiceName != "qidlink" {
		t.Errorf("expected default service name 'qidlink', got %s", cfg.ServiceName)
	}
	if cfg.JSONFormat {
		t.Error("expected default JSONFormat to be false")
	}
	if cfg.Output != os.Stderr {
		t.Error("expected logs to go to stderr by default")
	}
}

func TestNewLogger_NilConfig(t *testing.T) {
	if NewLogger(nil) == nil {
		t.Error("expected non-nil logger with nil config")
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelDebug)

	log.Info("row resolved", F("qid", "Q42"), F("score", 91.5))

	out := decodeLine(t, buf)
	if out["message"] != "row resolved" {
		t.Errorf("expected message 'row resolved', got %v", out["message"])
	}
	if out["service_name"] != "qidlink-test" {
		t.Errorf("expected service_name 'qidlink-test', got %v", out["service_name"])
	}
	if out["qid"] != "Q42" {
		t.Errorf("expected qid 'Q42', got %v", out["qid"])
	}
	if out["score"] != 91.5 {
		t.Errorf("expected score 91.5, got %v", out["score"])
	}
	if out["level"] != "info" {
		t.Errorf("expected level 'info', got %v", out["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelWarn)

	log.Debug("hidden")
	log.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info to be filtered, got %q", buf.String())
	}

	log.Warn("cache file corrupt")
	out := decodeLine(t, buf)
	if out["level"] != "warn" {
		t.Errorf("expected level warn, got %v", out["level"])
	}
}

func TestLogger_LevelDoesNotLeakBetweenLoggers(t *testing.T) {
	quiet := &bytes.Buffer{}
	loud := &bytes.Buffer{}
	newJSONLogger(quiet, LevelError)
	newJSONLogger(loud, LevelDebug).Debug("visible")

	if loud.Len() == 0 {
		t.Error("a debug logger created after an error logger should still emit debug")
	}
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo).With(F("pass", "Third-Query"), F("row", 12))

	log.Info("lookup")

	out := decodeLine(t, buf)
	if out["pass"] != "Third-Query" {
		t.Errorf("expected pass field, got %v", out["pass"])
	}
	if out["row"] != float64(12) {
		t.Errorf("expected row 12, got %v", out["row"])
	}
}

func TestLogger_WithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := ContextWithRunID(context.Background(), "run-123")
	ctx = context.WithValue(ctx, TraceIDKey, "trace-abc")

	newJSONLogger(buf, LevelInfo).WithContext(ctx).Info("start")

	out := decodeLine(t, buf)
	if out["run_id"] != "run-123" {
		t.Errorf("expected run_id run-123, got %v", out["run_id"])
	}
	if out["trace_id"] != "trace-abc" {
		t.Errorf("expected trace_id trace-abc, got %v", out["trace_id"])
	}
}

func TestLogger_FieldTypes(t *testing.T) {
	buf := &bytes.Buffer{}
	log := newJSONLogger(buf, LevelInfo)

	log.Info("types",
		F("attempts", int64(3)),
		F("ok", true),
		F("delay", 1500*time.Millisecond),
		F("queries", []string{"a", "b"}),
		Err(errors.New("boom")),
	)

	out := decodeLine(t, buf)
	if out["attempts"] != float64(3) {
		t.Errorf("expected attempts 3, got %v", out["attempts"])
	}
	if out["ok"] != true {
		t.Errorf("expected ok true, got %v", out["ok"])
	}
	if out["error"] != "boom" {
		t.Errorf("expected error 'boom', got %v", out["error"])
	}
	if qs, ok := out["queries"].([]interface{}); !ok || len(qs) != 2 {
		t.Errorf("expected queries array of 2, got %v", out["queries"])
	}
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{Level: LevelInfo, ServiceName: "qidlink", Output: buf})

	log.Info("human readable", F("qid", "Q1"))

	s := buf.String()
	if !strings.Contains(s, "human readable") || !strings.Contains(s, "qid") || !strings.Contains(s, "Q1") {
		t.Errorf("expected console output with message and field, got %q", s)
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qidlink.log")
	buf := &bytes.Buffer{}
	log := NewLogger(&Config{
		Level:       LevelInfo,
		ServiceName: "qidlink",
		Output:      buf,
		File:        DefaultFileConfig(path),
	})

	log.Info("to both")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to both"`) {
		t.Errorf("expected JSON entry in log file, got %q", string(data))
	}
	if !strings.Contains(buf.String(), "to both") {
		t.Errorf("expected console copy, got %q", buf.String())
	}
}

func TestMustGlobal_InitializesDefaults(t *testing.T) {
	SetGlobal(nil)
	if MustGlobal() == nil {
		t.Fatal("MustGlobal should initialize a logger")
	}

	nop := NewNopLogger()
	SetGlobal(nop)
	if MustGlobal() != nop {
		t.Error("MustGlobal should return the logger passed to SetGlobal")
	}
	SetGlobal(nil)
}

func TestParseLevel(t *testing.T) {
	tests := map[Level]string{
		LevelDebug:     "debug",
		LevelInfo:      "info",
		LevelWarn:      "warn",
		LevelError:     "error",
		Level("bogus"): "info",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
