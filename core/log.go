// Package core provides shared infrastructure for the coedit server,
// currently the process-wide structured logger.
package core

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance. Packages log through the
// package-level helpers or derive scoped loggers with With.
var Logger *zap.Logger

func init() {
	logger, err := buildConfig(false, "info").Build(zap.AddCallerSkip(1))
	if err != nil {
		logger = zap.NewNop()
	}
	Logger = logger
}

func buildConfig(development bool, level string, outputPaths ...string) zap.Config {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	if len(outputPaths) > 0 {
		config.OutputPaths = outputPaths
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	return config
}

// ConfigureLogger rebuilds the global logger. level is one of
// debug, info, warn, error; unknown values keep the config default.
func ConfigureLogger(development bool, level string, outputPaths ...string) error {
	logger, err := buildConfig(development, level, outputPaths...).Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, fields...)
}

// With creates a child logger with the given fields
func With(fields ...zap.Field) *zap.Logger {
	return Logger.With(fields...)
}

// SetLogger replaces the global logger instance
func SetLogger(logger *zap.Logger) {
	Logger = logger
}

// Sync flushes any buffered log entries.
func Sync() error {
	return Logger.Sync()
}
