package logger

import (
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger implements waLog.Logger on top of zap so the protocol library,
// the stores and the HTTP layer all write through the same sink.
type Logger struct {
	module string
	base   *zap.Logger
	sugar  *zap.SugaredLogger
}

// New creates a new Logger. env "production" selects the JSON encoder,
// anything else the colored console encoder.
func New(module, env, level string) (*Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.DisableStacktrace = true

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(module, base), nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return FromZap("", zap.NewNop())
}

// FromZap wraps an existing zap logger.
func FromZap(module string, base *zap.Logger) *Logger {
	named := base
	if module != "" {
		named = base.Named(module)
	}
	return &Logger{module: module, base: named, sugar: named.Sugar()}
}

// parseLevel converts string level to a zap level.
func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sub creates a sub-logger with a new module name.
func (l *Logger) Sub(module string) waLog.Logger {
	return l.SubLogger(module)
}

// SubLogger is Sub with the concrete return type.
func (l *Logger) SubLogger(module string) *Logger {
	return &Logger{
		module: joinModule(l.module, module),
		base:   l.base.Named(module),
		sugar:  l.base.Named(module).Sugar(),
	}
}

func joinModule(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "/" + child
}

// Module returns the slash separated module path.
func (l *Logger) Module() string {
	return l.module
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Debugf logs a debug message.
func (l *Logger) Debugf(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

// Infof logs an info message.
func (l *Logger) Infof(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

// Warnf logs a warning message.
func (l *Logger) Warnf(msg string, args ...interface{}) {
	l.sugar.Warnf(msg, args...)
}

// Errorf logs an error message.
func (l *Logger) Errorf(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

// Ensure Logger implements waLog.Logger.
var _ waLog.Logger = (*Logger)(nil)
