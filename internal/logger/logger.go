package logger

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	base  atomic.Pointer[zap.Logger]
	debug atomic.Bool
)

// Init configures JSON logging into log/app.log and stderr.
func Init(baseDir string) error {
	logDir := filepath.Join(baseDir, "log")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.OutputPaths = []string{filepath.Join(logDir, "app.log"), "stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return err
	}
	Use(l)
	return nil
}

// Use replaces the underlying zap logger. Tests install an observer core here.
func Use(l *zap.Logger) {
	base.Store(l)
}

// Sync flushes buffered entries.
func Sync() {
	if l := base.Load(); l != nil {
		_ = l.Sync()
	}
}

func SetDebug(enabled bool) {
	debug.Store(enabled)
}

func DebugEnabled() bool {
	return debug.Load()
}

func Debug(msg string, fields map[string]any) {
	if !debug.Load() {
		return
	}
	write(zapcore.DebugLevel, msg, fields)
}

func Info(msg string, fields map[string]any) {
	write(zapcore.InfoLevel, msg, fields)
}

func Warn(msg string, fields map[string]any) {
	write(zapcore.WarnLevel, msg, fields)
}

func Error(msg string, fields map[string]any) {
	write(zapcore.ErrorLevel, msg, fields)
}

func write(level zapcore.Level, msg string, fields map[string]any) {
	l := base.Load()
	if l == nil {
		return
	}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	if ce := l.Check(level, msg); ce != nil {
		ce.Write(zf...)
	}
}
