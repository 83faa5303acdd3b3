package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_DualOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger := New(Options{
		Env:          "prod",
		ConsoleLevel: "info",
		FileLevel:    "debug",
		File:         logFile,
		App:          "pricefeed-test",
	})
	defer func() {
		if err := Close(logger); err != nil {
			t.Errorf("close logger: %v", err)
		}
	}()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	time.Sleep(100 * time.Millisecond)

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	fileContent := string(content)

	for _, want := range []string{"debug message", "info message", "warn message"} {
		if !strings.Contains(fileContent, want) {
			t.Errorf("file should contain %q", want)
		}
	}
	if !strings.Contains(fileContent, `"level":"DEBUG"`) {
		t.Error("file sink should write JSON with level field")
	}
	if !strings.Contains(fileContent, `"app":"pricefeed-test"`) {
		t.Error("file sink should carry the app field")
	}
}

func TestNew_DefaultLevels(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "default.log")

	logger := New(Options{Env: "prod", File: logFile, App: "pricefeed-test"})
	defer func() { _ = Close(logger) }()

	logger.Debug("debug message")
	time.Sleep(100 * time.Millisecond)

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "debug message") {
		t.Error("default file level should include debug messages")
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	logger := New(Options{Env: "dev", ConsoleLevel: "info", App: "pricefeed-test"})
	defer func() { _ = Close(logger) }()

	if logger == nil {
		t.Fatal("logger should not be nil")
	}
	logger.Info("console only message")
}

func TestRedactingHandler(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "redacted.log")

	logger := New(Options{Env: "prod", FileLevel: "debug", File: logFile, App: "pricefeed-test"})
	defer func() { _ = Close(logger) }()

	logger.Info("bot starting",
		slog.String("token", "1234567890:AAF6kkk"),
		slog.String("wallet", "So11111111111111111111111111111111111111112"))

	time.Sleep(100 * time.Millisecond)

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	fileContent := string(content)

	if strings.Contains(fileContent, "AAF6kkk") {
		t.Error("token value should be redacted")
	}
	if !strings.Contains(fileContent, "[REDACTED]") {
		t.Error("should contain the redaction placeholder")
	}
	if !strings.Contains(fileContent, "So11111111111111111111111111111111111111112") {
		t.Error("non-sensitive attributes should pass through")
	}
}

func TestMultiHandler(t *testing.T) {
	h1 := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})
	multi := NewMultiHandler(h1, h2)

	ctx := context.Background()
	if !multi.Enabled(ctx, slog.LevelInfo) {
		t.Error("should be enabled for info level")
	}

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
	if err := multi.Handle(ctx, record); err != nil {
		t.Errorf("handle: %v", err)
	}
	if multi.WithAttrs([]slog.Attr{slog.String("key", "value")}) == nil {
		t.Error("WithAttrs should not return nil")
	}
	if multi.WithGroup("group") == nil {
		t.Error("WithGroup should not return nil")
	}
}
