package logger

import (
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newZapHandler(cfg Config) slog.Handler {
	lvl := cfg.level()

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(cfg.Output)),
		zapLevel(lvl),
	)
	// a busy room can log one delivery miss per member per frame
	if first, then := cfg.sampling(); first > 0 {
		core = zapcore.NewSamplerWithOptions(core, time.Second, first, then)
	}

	var opts []zap.Option
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return slogzap.Option{Level: lvl, Logger: zap.New(core, opts...)}.NewZapHandler()
}

// zapLevel maps slog levels (steps of 4) onto zap's (steps of 1).
func zapLevel(lvl slog.Level) zapcore.Level {
	z := zapcore.Level(lvl / 4)
	if z < zapcore.DebugLevel {
		return zapcore.DebugLevel
	}
	if z > zapcore.ErrorLevel {
		return zapcore.ErrorLevel
	}
	return z
}
