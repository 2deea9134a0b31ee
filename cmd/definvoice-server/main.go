// Copyright (c) 2025 DefInvoice
//
// This file is part of the DefInvoice server.
// Licensed under the MIT License. See LICENSE for details.

// Command definvoice-server runs the DefInvoice passkey service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/definvoice/definvoice/internal/config"
	"github.com/definvoice/definvoice/internal/rest"
	"github.com/definvoice/definvoice/internal/store"
	"github.com/definvoice/definvoice/pkg/identity"
	"github.com/definvoice/definvoice/pkg/passkeys"
	"github.com/definvoice/definvoice/pkg/ratelimit"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if env := os.Getenv(config.EnvConfigPath); env != "" {
		*configPath = env
	}

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting definvoice server", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingers := make(map[string]store.Pinger)

	users, cleanup, err := newUserStore(cfg, pingers)
	if err != nil {
		return err
	}
	defer cleanup()

	challenges, err := newChallengeStore(ctx, cfg, pingers)
	if err != nil {
		return err
	}

	service, err := passkeys.NewService(passkeys.ServiceParams{
		Config:         &cfg.RelyingParty,
		UserStore:      users,
		ChallengeStore: challenges,
	})
	if err != nil {
		return fmt.Errorf("passkey service: %w", err)
	}

	tokens, err := identity.NewJWTService(identity.Config{
		SigningKey:     []byte(cfg.Identity.SigningKey),
		Issuer:         cfg.Identity.Issuer,
		Audience:       cfg.Identity.Audience,
		CustomTokenTTL: cfg.Identity.CustomTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("identity service: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler, err := rest.NewHandler(rest.HandlerParams{
		Service: service,
		Tokens:  tokens,
		Metrics: rest.NewMetrics(registry),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("rest handler: %w", err)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})

	server, err := rest.NewServer(rest.ServerParams{
		Config:   cfg,
		Handler:  handler,
		Limiter:  limiter,
		Pingers:  pingers,
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("rest server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func newUserStore(cfg *config.Config, pingers map[string]store.Pinger) (passkeys.UserStore, func(), error) {
	switch cfg.Storage.Backend {
	case "bbolt":
		b, err := store.OpenBolt(cfg.Storage.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open bbolt store: %w", err)
		}
		pingers["storage"] = b
		return b, func() {
			if err := b.Close(); err != nil {
				slog.Error("close bbolt store", "error", err)
			}
		}, nil
	default:
		m := store.NewMemory()
		pingers["storage"] = m
		return m, func() {}, nil
	}
}

func newChallengeStore(ctx context.Context, cfg *config.Config, pingers map[string]store.Pinger) (passkeys.ChallengeStore, error) {
	ttl := cfg.RelyingParty.ChallengeTTL
	switch cfg.Challenges.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Challenges.Redis.Addr,
			Password: cfg.Challenges.Redis.Password,
			DB:       cfg.Challenges.Redis.DB,
		})
		r := passkeys.NewRedisChallengeStore(rdb, ttl)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis challenge store: %w", err)
		}
		pingers["challenges"] = r
		return r, nil
	default:
		m := passkeys.NewMemoryChallengeStore(ttl)
		m.StartCleanup(ctx, time.Minute)
		return m, nil
	}
}
