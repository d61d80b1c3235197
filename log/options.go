package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"moul.io/zapfilter"
)

var (
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
	AddStacktrace = zap.AddStacktrace
)

// WithFilter applies zapfilter rules, for example "*:* -debug:nav*".
// Invalid rules leave the core untouched.
func WithFilter(rules string) Option {
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		if rules == "" {
			return c
		}
		filter, err := zapfilter.ParseRules(rules)
		if err != nil {
			return c
		}
		return zapfilter.NewFilteringCore(c, filter)
	})
}

// WithRotation additionally writes JSON records to a size rotated file.
func WithRotation(filename string, maxSizeMB int) Option {
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		if filename == "" {
			return c
		}
		w := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    maxSizeMB, // MB
			MaxBackups: 5,
			Compress:   true,
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		return zapcore.NewTee(c, zapcore.NewCore(enc, zapcore.AddSync(w), c))
	})
}
