// Package logging provides unified logging infrastructure for hellod
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger together with the optional log file it writes to
type Logger struct {
	*zap.SugaredLogger
	file *os.File
}

var (
	mu            sync.RWMutex
	defaultLogger = newStdoutLogger()
)

// debugEnabled reports whether DEBUG=true was set for this process.
func debugEnabled() bool {
	return os.Getenv("DEBUG") == "true"
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return cfg
}

func newStdoutLogger() *Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stdout),
		zapcore.DebugLevel,
	)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}
}

// Initialize sets up the logging system with an additional file sink in logDir
func Initialize(logDir string) error {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "hellod.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- path built from trusted config
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	enc := encoderConfig()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stdout), zapcore.DebugLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), zapcore.DebugLevel),
	)

	mu.Lock()
	defaultLogger = &Logger{SugaredLogger: zap.New(core).Sugar(), file: file}
	mu.Unlock()

	Infof("Logging initialized: %s", logPath)
	return nil
}

// Close flushes buffered entries and closes the log file
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	_ = defaultLogger.Sync()
	if defaultLogger.file != nil {
		err := defaultLogger.file.Close()
		defaultLogger = newStdoutLogger()
		return err
	}
	return nil
}

// SetOutput replaces the default logger with one writing to w. Used by tests.
func SetOutput(w zapcore.WriteSyncer) {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), w, zapcore.DebugLevel)
	mu.Lock()
	defaultLogger = &Logger{SugaredLogger: zap.New(core).Sugar()}
	mu.Unlock()
}

func current() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Printf logs a formatted message at info level
func Printf(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Infof logs an info message
func Infof(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warnf logs a warning message
func Warnf(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Errorf logs an error message
func Errorf(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Debugf logs a debug message (only when DEBUG=true)
func Debugf(format string, v ...interface{}) {
	if !debugEnabled() {
		return
	}
	current().Debugf(format, v...)
}
