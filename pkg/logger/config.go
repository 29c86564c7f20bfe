package logger

import (
	"io"
	"log/slog"
)

type Backend string

const (
	BackendStd Backend = "std" // text handler, dev
	BackendZap Backend = "zap" // slog-zap JSON, stage/prod
)

type Config struct {
	// metadata attached to every record
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // default: zap for stage/prod, std for dev
	Debug   bool

	// zap sampling
	SampleInitial    int
	SampleThereafter int

	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

// sampling returns the per-second zap sampler settings. A negative
// SampleInitial disables sampling.
func (c Config) sampling() (initial, thereafter int) {
	initial, thereafter = c.SampleInitial, c.SampleThereafter
	if initial < 0 {
		return 0, 0
	}
	if initial == 0 {
		initial = 100
	}
	if thereafter <= 0 {
		thereafter = 10
	}
	return initial, thereafter
}

func (c Config) level() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}

	return c.Level
}
