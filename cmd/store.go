package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/chat-relay/config"
	"github.com/cwrk-planet/chat-relay/internal/auth"
	"github.com/cwrk-planet/chat-relay/internal/memory"
	"github.com/cwrk-planet/chat-relay/internal/postgres"
	"github.com/cwrk-planet/chat-relay/internal/service"
	"github.com/cwrk-planet/chat-relay/internal/sqlite"
)

// openStore returns the configured message repository and its close func.
func openStore(ctx context.Context, cfg config.Store) (service.MessageRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.Warn("store: memory driver, history is lost on restart")
		return memory.NewMessageRepository(nil), func() {}, nil

	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		slog.Info("store: sqlite", "path", cfg.Path)
		return repo, func() { _ = repo.Close() }, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:               cfg.DSN,
			MaxConns:          cfg.MaxConns,
			MinConns:          cfg.MinConns,
			MaxConnLifetime:   cfg.MaxConnLifetime,
			MaxConnIdleTime:   cfg.MaxConnIdleTime,
			HealthCheckPeriod: cfg.HealthCheckPeriod,
			ApplicationName:   cfg.ApplicationName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		slog.Info("store: postgres", "max_conns", pool.Config().MaxConns)
		return postgres.NewMessageRepository(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// newVerifier returns nil when no JWT key material is configured.
func newVerifier(cfg config.JWT) (*auth.Verifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	vc := auth.VerifierConfig{
		Alg:       cfg.Alg,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		ClockSkew: cfg.ClockSkew,
	}
	if strings.EqualFold(cfg.Alg, auth.AlgRS256) {
		pub, err := auth.LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load jwt public key: %w", err)
		}
		vc.PublicKey = pub
	} else {
		vc.Secret = []byte(cfg.Secret)
	}

	return auth.NewVerifier(vc)
}
