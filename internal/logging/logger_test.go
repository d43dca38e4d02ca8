package logging

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerWritesConsoleLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := New(dir, "INFO", FormatConsole)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.For("engine").Infow("run finished", "released", 3)
	logger.For("engine").Debug("hidden at info level")
	logger.Printf("bridge: listening on %s\n", "127.0.0.1:8765")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(data)
	for _, want := range []string{"run finished", "engine", "released", "bridge: listening on 127.0.0.1:8765"} {
		if !strings.Contains(text, want) {
			t.Fatalf("log missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "hidden at info level") {
		t.Fatalf("debug line written at info level")
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "debug", "json")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.For("auth").Warnw("login rejected", "user", "operador")
	_ = logger.Close()
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("line is not JSON: %v\n%s", err, line)
	}
	if decoded["component"] != "auth" || decoded["level"] != "WARN" || decoded["user"] != "operador" {
		t.Fatalf("unexpected fields: %v", decoded)
	}
}

func TestNilAndNopLoggersAreSafe(t *testing.T) {
	var nilLogger *Logger
	nilLogger.Printf("ignored")
	nilLogger.For("x").Info("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
	nop := Nop()
	nop.Printf("ignored")
	if err := nop.Close(); err != nil {
		t.Fatalf("close nop: %v", err)
	}
}

func TestStdLogRedirectsIntoFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "INFO", FormatConsole)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	restore := zap.RedirectStdLog(logger.Zap())
	log.Print("http: TLS handshake error from 10.0.0.7")
	restore()
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "TLS handshake error") {
		t.Fatalf("std log line missing:\n%s", data)
	}
	if Nop().Zap() == nil {
		t.Fatalf("nop logger must expose a usable zap logger")
	}
}
