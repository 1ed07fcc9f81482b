package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	identityhandler "policardmed/internal/identity/handler"
	identitymetrics "policardmed/internal/identity/metrics"
	identityservice "policardmed/internal/identity/service"
	"policardmed/internal/identity/token"
	memberhandler "policardmed/internal/member/handler"
	membermetrics "policardmed/internal/member/metrics"
	memberservice "policardmed/internal/member/service"
	"policardmed/internal/platform/config"
	"policardmed/internal/platform/httpserver"
	"policardmed/internal/platform/logger"
	"policardmed/internal/platform/metrics"
	httptransport "policardmed/internal/transport/http"
	"policardmed/pkg/platform/middleware/metadata"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("policardmed exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting policardmed", "config", cfg.String())

	trustedProxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m := metrics.New()
	deps := &closers{}
	defer deps.closeAll(log)

	store, checks, err := openMemberStore(ctx, cfg, deps, log)
	if err != nil {
		return err
	}

	auditPublisher, err := buildAuditPublisher(ctx, cfg, deps, m, log)
	if err != nil {
		return err
	}
	// closed before the sinks it writes to
	deps.add(func() error { auditPublisher.Close(); return nil })

	identityMetrics := identitymetrics.NewWithRegistry(m.Registry())
	revocations, failures, err := buildSessionState(ctx, cfg, deps, checks, identityMetrics.RevocationCheckDuration)
	if err != nil {
		return err
	}

	admin, err := identityservice.NewAdminCredentials(
		cfg.Identity.AdminUsername,
		cfg.Identity.AdminPasswordHash,
		cfg.Identity.AdminPassword,
	)
	if err != nil {
		return fmt.Errorf("admin credentials: %w", err)
	}
	identity := identityservice.New(store,
		token.NewJWTService(cfg.Identity.JWTSigningKey, cfg.Identity.JWTIssuer, cfg.Identity.JWTAudience),
		revocations, admin,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithMetrics(identityMetrics),
		identityservice.WithTokenTTL(cfg.Identity.TokenTTL),
		identityservice.WithLoginThrottle(failures, cfg.Identity.LoginMaxFailures, cfg.Identity.LoginWindow),
	)

	members := memberservice.New(store,
		memberservice.WithLogger(log),
		memberservice.WithAuditPublisher(auditPublisher),
		memberservice.WithMetrics(membermetrics.NewWithRegistry(m.Registry())),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  m,
		Tokens:   identity,
		Identity: identityhandler.New(identity, log),
		Members:  memberhandler.New(members, log),
		Checks:   checks,
		OpsToken: cfg.Server.OpsToken,

		TrustedProxies: trustedProxies,
	})

	srv := httpserver.New(cfg.Server, router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	g.Go(func() error {
		return members.TrackStats(gctx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("policardmed stopped")
	return nil
}
