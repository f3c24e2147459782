// Package log provides the daemon's package-level zap logger.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
	log  *zap.SugaredLogger
)

// Init builds the logger. Extra sinks (e.g. the serial console) receive the
// same entries as stderr.
func Init(debug bool, sinks ...zapcore.WriteSyncer) {
	var (
		enc   zapcore.Encoder
		level zap.AtomicLevel
	)
	if debug {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		cores = append(cores, zapcore.NewCore(enc, s, level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	base = l
	log = l.Sugar()
	mu.Unlock()
}

// GetZapLogger returns the base logger, falling back to a production logger
// when Init has not run (tests).
func GetZapLogger() *zap.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		base, _ = zap.NewProduction(zap.AddCallerSkip(1))
		log = base.Sugar()
	}
	return base
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	s := log
	mu.RUnlock()
	if s != nil {
		return s
	}
	return GetZapLogger().Sugar()
}

// Sync flushes any buffered log entries.
func Sync() {
	if s := sugar(); s != nil {
		_ = s.Sync()
	}
}

func Debugf(template string, args ...interface{}) {
	sugar().Debugf(template, args...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

func Infof(template string, args ...interface{}) {
	sugar().Infof(template, args...)
}

func Infow(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

func Warnf(template string, args ...interface{}) {
	sugar().Warnf(template, args...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

func Errorf(template string, args ...interface{}) {
	sugar().Errorf(template, args...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

func Fatalf(template string, args ...interface{}) {
	sugar().Fatalf(template, args...)
}
