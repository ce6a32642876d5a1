// Package logger provides the process-wide structured logger. It is
// constructed once at startup (see cmd/fmmcp) and threaded into
// components by parameter; nothing in pkg/persistence, pkg/tools, or
// pkg/storage reaches for a package-global logger of its own.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names recognized by the LOG_LEVEL configuration option (spec §6).
const (
	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// New builds a *zap.SugaredLogger writing JSON to stderr at the given level.
// Stdio-transport deployments must log to stderr only: stdout is reserved
// for the newline-delimited JSON-RPC protocol (spec §4.8).
func New(level string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		// Fall back to a minimal logger rather than failing startup over
		// a logging misconfiguration.
		l = zap.NewNop()
	}
	return l.Sugar()
}

// NewNop returns a logger that discards all output, for use in tests that
// don't assert on log content.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// LevelFromEnv reads LOG_LEVEL with a fallback, for callers outside the
// cobra/viper config path (e.g. the bridge, which is a plain CLI binary).
func LevelFromEnv() string {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	return LevelInfo
}
