package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	globalMu     sync.RWMutex
)

func init() {
	// Production logger until SetGlobal is called
	globalLogger, _ = zap.NewProduction()
}

// Options controls where and how verbosely the logger writes.
type Options struct {
	Level string
	// File, when set, sends log output to a rotated file instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New creates a zap logger from a level string and optional file sink.
func New(opts Options) (*zap.Logger, error) {
	lvl := ParseLevel(opts.Level)

	if opts.File == "" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		cfg.Sampling = nil
		return cfg.Build()
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	sink := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), lvl)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Global returns the global logger.
func Global() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetGlobal sets the global logger.
func SetGlobal(l *zap.Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

func Debug(msg string, fields ...zap.Field) {
	Global().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Global().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Global().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Global().Error(msg, fields...)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Global().Sync()
}
