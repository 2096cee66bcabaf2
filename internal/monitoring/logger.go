// Package monitoring holds the process-wide diagnostic loggers used by the
// trip analytics pipeline.
package monitoring

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger for progress and summary
// lines. It writes at info level and defaults to a zap production logger.
// Tests or production code can redirect or mute it with SetLogger.
var Logf func(format string, v ...interface{})

// Warnf receives conditions an operator should see even when the level is
// raised to warn: rejected frames, missing channels, diverged tracks.
var Warnf func(format string, v ...interface{})

func init() {
	l, err := NewZapLoggers("info")
	if err != nil {
		panic(err)
	}
	Logf, Warnf = l.Infof, l.Warnf
}

// SetLogger replaces the info logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	Logf = orNoop(f)
}

// SetWarnLogger replaces the warn logger. Passing nil will set a no-op logger.
func SetWarnLogger(f func(format string, v ...interface{})) {
	Warnf = orNoop(f)
}

// Loggers is a pair of leveled format functions sharing one zap core.
type Loggers struct {
	Infof func(format string, v ...interface{})
	Warnf func(format string, v ...interface{})
	Sync  func() error
}

// Install makes l the package loggers.
func (l Loggers) Install() {
	SetLogger(l.Infof)
	SetWarnLogger(l.Warnf)
}

// NewZapLoggers builds zap-backed loggers at the given threshold ("debug",
// "info", "warn", "error"). At "warn" only Warnf output is emitted; at
// "error" both are muted. Sync flushes buffered entries and should be
// deferred by the caller.
func NewZapLoggers(level string) (Loggers, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return Loggers{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return Loggers{}, fmt.Errorf("failed to build zap logger: %w", err)
	}
	return FromZap(logger), nil
}

// FromZap returns loggers that write through an existing zap logger. A nil
// logger yields no-op loggers.
func FromZap(logger *zap.Logger) Loggers {
	if logger == nil {
		noop := orNoop(nil)
		return Loggers{Infof: noop, Warnf: noop, Sync: func() error { return nil }}
	}
	sugar := logger.Sugar()
	return Loggers{Infof: sugar.Infof, Warnf: sugar.Warnf, Sync: logger.Sync}
}

func orNoop(f func(format string, v ...interface{})) func(format string, v ...interface{}) {
	if f == nil {
		return func(string, ...interface{}) {}
	}
	return f
}
