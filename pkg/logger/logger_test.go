package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"douyindl/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"json format", &config.LoggingConfig{Level: "debug", Format: "json"}, false},
		{"empty level defaults to info", &config.LoggingConfig{}, false},
		{"invalid log level", &config.LoggingConfig{Level: "verbose"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "douyindl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && l == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"trace", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLogLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if level != tt.expected {
				t.Errorf("parseLogLevel() = %v, want %v", level, tt.expected)
			}
		})
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.WithField("sec_user_id", "MS4wLjABAAAA").
		WithFields(map[string]interface{}{"page": 2}).
		InfoWithFields("Fetched post page", map[string]interface{}{
			"count":   18,
			"elapsed": 1500 * time.Millisecond,
		})

	entry := decodeLine(t, &buf)
	if entry["message"] != "Fetched post page" {
		t.Errorf("unexpected message %v", entry["message"])
	}
	if entry["app"] != "douyindl" {
		t.Errorf("missing app field: %v", entry)
	}
	if entry["sec_user_id"] != "MS4wLjABAAAA" {
		t.Errorf("missing sec_user_id: %v", entry)
	}
	if entry["page"] != float64(2) || entry["count"] != float64(18) {
		t.Errorf("missing numeric fields: %v", entry)
	}
}

func TestWithErrorAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Info("should be filtered")
	if buf.Len() != 0 {
		t.Fatalf("info should not be written at warn level: %q", buf.String())
	}

	l.WithError(errors.New("connection reset")).Warn("Download failed")
	entry := decodeLine(t, &buf)
	if entry["error"] != "connection reset" {
		t.Errorf("expected error field, got %v", entry)
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level, got %v", entry["level"])
	}

	if l.WithError(nil) != l {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestScopedFieldsDoNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, zerolog.InfoLevel)
	_ = base.WithField("task", "video")

	base.Info("plain")
	if strings.Contains(buf.String(), "task") {
		t.Errorf("parent logger picked up child field: %q", buf.String())
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetLogger(original)

	captured := NewTestLogger()
	SetLogger(captured)

	Info("global info")
	WithField("kind", "image").Warn("global warn")

	if !captured.HasMessage("global info") {
		t.Error("global Info was not routed to the installed logger")
	}
	warns := captured.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["kind"] != "image" {
		t.Errorf("unexpected warn messages: %+v", warns)
	}
}

func TestTestLoggerSharesBuffer(t *testing.T) {
	l := NewTestLogger()
	scoped := l.WithField("run_id", "abc").WithError(errors.New("boom"))
	scoped.Error("batch failed")

	msgs := l.GetMessages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Fields["run_id"] != "abc" || msgs[0].Error == nil {
		t.Errorf("scoped context missing: %+v", msgs[0])
	}
	if !l.HasError() {
		t.Error("HasError should report the error message")
	}

	l.Clear()
	if len(l.GetMessages()) != 0 {
		t.Error("Clear should drop captured messages")
	}
}

func TestHelpers(t *testing.T) {
	l := NewTestLogger()

	LogPage(l, "MS4w", 1, 50, 50)
	LogDownload(l, "video", "a.mp4", 1, time.Second, nil)
	LogDownload(l, "image", "b.jpg", 4, time.Second, errors.New("timeout"))
	LogBatch(l, "run-1", 10, 1, 2, time.Minute)

	if !l.HasMessage("Fetched post page") || !l.HasMessage("Download batch finished") {
		t.Errorf("missing helper messages: %+v", l.GetMessages())
	}
	warns := l.GetMessagesByLevel("WARN")
	if len(warns) != 1 || warns[0].Fields["path"] != "b.jpg" {
		t.Errorf("failed download should log a warning: %+v", warns)
	}
}
