// Package logging provides the process-wide leveled logger used across the
// lead qualification engine. It wraps a zap SugaredLogger behind package-level
// helpers so call sites stay terse (logging.Infof, logging.Errorf, ...).
//
// The logger is configured once from the environment:
//
//	LEADFLOW_LOG_LEVEL   debug|info|warn|error (default info)
//	LEADFLOW_LOG_PRETTY  "true" switches from JSON to console encoding
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newDefault()
)

func newDefault() *zap.SugaredLogger {
	l, _ := build("info", false)
	return l
}

func build(level string, pretty bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// InitFromEnv configures the package logger from environment variables.
// Safe to call more than once; the last call wins.
func InitFromEnv() error {
	level := os.Getenv("LEADFLOW_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	pretty := strings.EqualFold(os.Getenv("LEADFLOW_LOG_PRETTY"), "true")

	l, err := build(level, pretty)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes any buffered log entries. Call on shutdown.
func Sync() {
	_ = get().Sync()
}

func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { get().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { get().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { get().Fatalf(format, args...) }
