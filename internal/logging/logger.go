// Package logging writes the diagnostic log to .releasedesk/logs/releasedesk.log.
// The terminal belongs to the dashboard, so nothing is ever logged to stdout.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "CONSOLE"
	FormatJSON    = "JSON"

	fileName = "releasedesk.log"
)

// Logger wraps a zap logger bound to the diagnostic log file.
type Logger struct {
	file  *os.File
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

// New creates (or reuses) the log file inside logDir.
func New(logDir, level, format string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	core := zapcore.NewCore(newEncoder(format), zapcore.AddSync(f), zap.NewAtomicLevelAt(parseLevel(level)))
	z := zap.New(core, zap.AddCaller())
	return &Logger{file: f, zap: z, sugar: z.Sugar()}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	z := zap.NewNop()
	return &Logger{zap: z, sugar: z.Sugar()}
}

// For returns a named logger for one component.
func (l *Logger) For(component string) *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}
	return l.sugar.Named(component)
}

// Zap exposes the underlying structured logger.
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.zap == nil {
		return zap.NewNop()
	}
	return l.zap
}

// Printf writes a single info line. It satisfies the bridge Logger contract.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.sugar == nil {
		return
	}
	l.sugar.Infof(strings.TrimRight(format, "\n"), args...)
}

// Close flushes buffered entries and releases the file handle.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	if l.zap != nil {
		_ = l.zap.Sync()
	}
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
	}
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(time.RFC3339))
	}
	cfg.ConsoleSeparator = " | "
	return zapcore.NewConsoleEncoder(cfg)
}
