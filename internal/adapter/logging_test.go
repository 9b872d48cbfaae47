package adapter

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "starlight.log")
	logger, err := SetupLogger(&LoggingConfig{File: path, Level: "WARN"})
	if err != nil {
		t.Fatalf("SetupLogger: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "version", 1200)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Error("info record written at WARN level")
	}
	if !strings.Contains(out, `"msg":"kept"`) || !strings.Contains(out, `"version":1200`) {
		t.Errorf("log = %s", out)
	}
}
