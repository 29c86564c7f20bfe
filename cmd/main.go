package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-relay/config"
	"github.com/cwrk-planet/chat-relay/internal/auth"
	"github.com/cwrk-planet/chat-relay/internal/redisbus"
	"github.com/cwrk-planet/chat-relay/internal/registry"
	"github.com/cwrk-planet/chat-relay/internal/relay"
	"github.com/cwrk-planet/chat-relay/internal/service"
	"github.com/cwrk-planet/chat-relay/internal/session"
	grpcx "github.com/cwrk-planet/chat-relay/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-relay/internal/transport/http"
	"github.com/cwrk-planet/chat-relay/internal/transport/ws"
	"github.com/cwrk-planet/chat-relay/internal/worker"
	"github.com/cwrk-planet/chat-relay/pkg/logger"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-relay",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version, "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- store ---
	repo, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer closeStore()

	// --- persistence workers ---
	pool := worker.NewPool(worker.PoolConfig{
		NumWorkers:  cfg.Persist.Workers,
		QueueSize:   cfg.Persist.QueueSize,
		TaskTimeout: cfg.Persist.Timeout,
	})
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("start worker pool: %v", err)
	}

	// --- auth ---
	verifier, err := newVerifier(cfg.Auth.JWT)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	resolver := auth.NewResolver(verifier, auth.NewDenyList(cfg.Auth.InactiveUsers), auth.ResolverConfig{
		TrustClientUsername: cfg.Auth.TrustClientUsername,
		AllowGuests:         cfg.Auth.AllowGuests,
		GuestName:           cfg.Chat.GuestName,
	})
	if cfg.Auth.TrustClientUsername {
		slog.Warn("auth.trustClientUsername is on, usernames are not verified")
	}

	// --- relay core ---
	reg := registry.New()
	sessions := session.NewStore()

	var (
		bus    *redisbus.Bus
		fanout relay.Fanout
	)
	if cfg.Redis.Addr != "" {
		bus, err = redisbus.New(ctx, redisbus.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, logger.InstanceID())
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = bus.Close() }()
		fanout = bus
	}

	disp := relay.NewDispatcher(reg, fanout)
	chatSvc := service.NewChatService(repo, pool, service.ChatConfig{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		MaxHistoryLimit:  cfg.Chat.MaxHistoryLimit,
	})
	handler := relay.NewHandler(sessions, reg, chatSvc, disp, cfg.Chat.GuestName)

	// --- WS ---
	wsServer := ws.NewServer(handler, disp, resolver, ws.Config{
		PingInterval:          cfg.WS.PingInterval,
		WriteTimeout:          cfg.WS.WriteTimeout,
		ReadLimit:             cfg.WS.ReadLimit,
		SendBuffer:            cfg.WS.SendBuffer,
		AllowedOrigins:        cfg.HTTP.AllowedOrigins,
		DefaultRoom:           cfg.Chat.DefaultRoom,
		NotifyUnauthenticated: cfg.WS.NotifyUnauthenticated,
	})

	// --- HTTP ---
	router := httpx.NewRouter(
		httpx.NewHandler(chatSvc, reg, sessions, cfg.Chat.SuggestedRooms),
		resolver,
		wsServer.HandleWS,
		cfg.HTTP.AllowedOrigins,
	)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC ---
	var grpcSrv *grpcx.Server
	if cfg.GRPC.Addr != "" {
		grpcSrv = grpcx.NewServer(10 * time.Second)
	}

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				return err
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			return grpcSrv.Serve(lis)
		})
	}

	if bus != nil {
		g.Go(func() error {
			// cross-process fan-out is best effort; local delivery keeps working without it
			if err := bus.Run(gctx, disp.Deliver); err != nil {
				slog.Error("redisbus stopped", "err", err)
			}
			return nil
		})
	}

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown started")
		if grpcSrv != nil {
			grpcSrv.SetServing(false)
		}

		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpSrv.Shutdown(shCtx)
		wsServer.Shutdown()
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		if perr := pool.Stop(shCtx); perr != nil {
			slog.Warn("worker pool drain incomplete", "err", perr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
	slog.Info("stopped", "sessions", sessions.Len(), "rooms", reg.RoomCount())
}
