package logger

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// ensureInstanceID keeps an explicit id, otherwise builds <host>-<8 hex>.
// The redis bus uses it as the frame origin, so it must differ per process.
func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "chat-relay"
	}
	id := uuid.New()
	return host + "-" + id.String()[:8]
}

func commonAttr(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Int("pid", os.Getpid()),
	}
}
