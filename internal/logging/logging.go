package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged.
type Options struct {
	Level string // debug, info, warn, error
	Dir   string // rotating file output; empty logs to stderr only
	JSON  bool   // JSON on stderr instead of console encoding
}

// New builds the process logger. Stderr always receives output; when Dir is
// set, a JSON copy goes to Dir/closeshave.log rotated at 10 MB, 7 backups.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var stderrEncoder zapcore.Encoder
	if opts.JSON {
		stderrEncoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		stderrEncoder = zapcore.NewConsoleEncoder(consoleConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stderrEncoder, zapcore.Lock(os.Stderr), level),
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(opts.Dir, "closeshave.log"),
				MaxSize:    10,
				MaxBackups: 7,
				Compress:   true,
			}),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// LogDuration lets you do: defer logging.LogDuration(ctx, log, "search")()
func LogDuration(ctx context.Context, log *zap.Logger, name string) func() {
	start := time.Now()
	return func() {
		fields := []zap.Field{
			zap.String("op", name),
			zap.Duration("duration", time.Since(start)),
		}
		if ctx.Err() != nil {
			fields = append(fields, zap.NamedError("ctx_err", ctx.Err()))
		}
		log.Debug("timing", fields...)
	}
}
