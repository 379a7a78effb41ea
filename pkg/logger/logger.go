package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   *zap.Logger
	level = zap.NewAtomicLevel()
)

// Init builds the process logger. format "json" writes one object per line,
// anything else the console encoding. outputPath is "stdout", "stderr" or a
// file path, created if missing.
func Init(lvl, format, outputPath string) error {
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	sink, err := openSink(outputPath)
	if err != nil {
		return err
	}

	cfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	// Skip one frame so callers of the helpers below are reported, not this file.
	Log = zap.New(zapcore.NewCore(encoder, sink, level),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return nil
}

func openSink(outputPath string) (zapcore.WriteSyncer, error) {
	switch outputPath {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// SetLevel changes the level of the running logger.
func SetLevel(lvl string) error {
	return level.UnmarshalText([]byte(lvl))
}

// GetLogger returns the process logger for direct use, or a no-op logger
// before Init.
func GetLogger() *zap.Logger {
	if Log == nil {
		return zap.NewNop()
	}
	return Log.WithOptions(zap.AddCallerSkip(-1))
}

// With returns a child logger that adds fields to every entry.
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

func Info(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Info(msg, fields...)
	}
}

func Error(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Error(msg, fields...)
	}
}

func Debug(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Debug(msg, fields...)
	}
}

func Warn(msg string, fields ...zap.Field) {
	if Log != nil {
		Log.Warn(msg, fields...)
	}
}

func Fatal(msg string, fields ...zap.Field) {
	if Log == nil {
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(1)
	}
	Log.Fatal(msg, fields...)
}

func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
