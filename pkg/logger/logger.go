// Package logger provides the kernel's structured logging conventions: a
// shared slog.Logger constructor driven by LOG_LEVEL/GO_ENV, and small
// attribute helpers (Scope, Error) so call sites read consistently.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Module provides the shared *slog.Logger for fx-wired applications, plus a
// *zap.Logger at the same level for the handful of packages (goose-backed
// migrator) that predate the project's move to slog.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Provide(NewZapLogger),
)

// Scope tags a log line with the subsystem that emitted it, e.g.
// log.With(logger.Scope("tessella.store")).
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error attaches an error to a log line under a conventional key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds the process-wide logger. Level comes from LOG_LEVEL
// (debug/info/warn|warning/error, case-insensitive, defaulting to info).
// GO_ENV=production switches to JSON output; anything else uses a
// human-readable text handler.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// NewZapLogger builds a zap logger at the same LOG_LEVEL/GO_ENV the slog
// logger uses, so the two stay consistent when a package needs zap's API.
func NewZapLogger() (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(parseLevel(os.Getenv("LOG_LEVEL"))))
	return cfg.Build()
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level <= slog.LevelInfo:
		return zapcore.InfoLevel
	case level <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
