package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSetupJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetupWithConfig("info", "json", &buf)

	slog.Info("hello", "appId", "abc")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "hello" {
		t.Errorf("expected msg 'hello', got %v", entry["msg"])
	}
	if entry["appId"] != "abc" {
		t.Errorf("expected appId attr, got %v", entry["appId"])
	}
	if entry["service"] != serviceName {
		t.Errorf("expected service attr %q, got %v", serviceName, entry["service"])
	}
}

func TestStdlibBridge(t *testing.T) {
	var buf bytes.Buffer
	SetupWithConfig("info", "text", &buf)

	log.Printf("bridged message")

	if !strings.Contains(buf.String(), "bridged message") {
		t.Errorf("stdlib log output not captured: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "source=stdlib") {
		t.Errorf("expected source=stdlib attr: %s", buf.String())
	}
}

func TestStdlibBridgeEscalatesServerNoise(t *testing.T) {
	var buf bytes.Buffer
	SetupWithConfig("info", "text", &buf)

	log.Printf("http: TLS handshake error from 10.0.0.1: EOF")

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected http.Server noise at WARN: %s", out)
	}
}

func TestDebugLevelRecordsSource(t *testing.T) {
	var buf bytes.Buffer
	SetupWithConfig("debug", "json", &buf)

	slog.Debug("tracing")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if _, ok := entry["source"]; !ok {
		t.Errorf("expected source attr at debug level: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetupWithConfig("warn", "text", &buf)

	slog.Info("should be dropped")
	slog.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "should appear") {
		t.Error("warn message missing")
	}
}
