// Package log provides the structured, contextual logger used by the
// Controller, every Runtime Service, and every Process Actor. It wraps
// zap the same way the teacher module's log package does: a package-level
// production logger, and New(...) returning a child logger pre-seeded with
// caller-supplied key/value pairs (actor id, service id, phase, ...).
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	config zap.Config
	root   *zap.Logger
	logger *zap.SugaredLogger
)

func init() {
	config = zap.NewProductionConfig()
	config.EncoderConfig = zap.NewProductionEncoderConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.Sampling = nil
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := config.Build()
	if err != nil {
		panic(err)
	}
	root = built
	logger = root.Sugar()
}

// Logger is the contextual logging surface used throughout the runtime.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
}

// New returns a logger with the given structured context attached, e.g.
//
//	log.New("controller", true)
//	log.New("service_id", svcID, "process_id", actorID)
func New(keysAndValues ...interface{}) Logger {
	return logger.With(keysAndValues...)
}

// Nop returns a Logger that discards everything, for use in tests that
// don't want production logging overhead or output.
func Nop() Logger {
	return zap.NewNop().Sugar()
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() error {
	return root.Sync()
}

// SetDebug raises the package logger to debug level.
func SetDebug() { config.Level.SetLevel(zap.DebugLevel) }

// SetInfo sets the package logger to info level.
func SetInfo() { config.Level.SetLevel(zap.InfoLevel) }

// SetWarn sets the package logger to warn level.
func SetWarn() { config.Level.SetLevel(zap.WarnLevel) }

// SetError sets the package logger to error level.
func SetError() { config.Level.SetLevel(zap.ErrorLevel) }
