// Package testutil holds helpers shared by the test suites: log-level
// control and availability gates for backend-dependent tests.
package testutil

import (
	"flag"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"coedit/core"
)

var logLevel string

func init() {
	flag.StringVar(&logLevel, "loglevel", "", "test log level (debug, info, warn, error)")
}

// parseLevel maps a level name to a zap level; unknown names and the
// empty string keep tests quiet at error level.
func parseLevel(s string) zapcore.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN":
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// configureTestLogger rebuilds the global logger for tests. Level
// priority: -loglevel flag, then LOG_LEVEL env, then quiet default.
func configureTestLogger() {
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(level))
	logger, err := config.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	core.SetLogger(logger)
}

// TestMainWithLogLevel is the TestMain body shared by the packages:
//
//	func TestMain(m *testing.M) {
//		testutil.TestMainWithLogLevel(m)
//	}
//
// Run with -loglevel=debug (or LOG_LEVEL=debug) to see component logs.
func TestMainWithLogLevel(m *testing.M) {
	if !flag.Parsed() {
		flag.Parse()
	}
	configureTestLogger()
	os.Exit(m.Run())
}
