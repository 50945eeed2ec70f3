package telemetry

import (
	"os"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new OpenTelemetry-aware zap logger writing JSON to
// stdout. When file is set, entries are also written there, rotated by size.
func NewLogger(level, file string) (*otelzap.Logger, error) {
	zapLevel := parseLevel(level)

	if file == "" {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapLevel)
		config.Encoding = "json"
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		zapLogger, err := config.Build(zap.AddCallerSkip(1))
		if err != nil {
			return nil, err
		}
		return otelzap.New(zapLogger), nil
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    100, // MB before it rolls
		MaxBackups: 7,
		MaxAge:     30, // days
		Compress:   true,
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zapLevel),
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), zapLevel),
	)
	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return otelzap.New(zapLogger), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug", "DEBUG":
		return zapcore.DebugLevel
	case "warn", "WARN":
		return zapcore.WarnLevel
	case "error", "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
