package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	memberstore "policardmed/internal/member/store/member"
	"policardmed/internal/platform/config"
	platformkafka "policardmed/internal/platform/kafka"
	"policardmed/internal/platform/logger"
	platformpostgres "policardmed/internal/platform/postgres"
	audit "policardmed/pkg/platform/audit"
	"policardmed/pkg/platform/audit/consumer"
	auditpostgres "policardmed/pkg/platform/audit/store/postgres"
)

// main drains the Kafka audit topic into the audit_events table.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("audit consumer exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel).With("component", "audit-consumer")
	if cfg.Store.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required for the audit consumer")
	}

	db, err := platformpostgres.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Store.RunMigrations {
		if err := memberstore.Migrate(db); err != nil {
			return err
		}
	}

	client, err := platformkafka.NewConsumer(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	defer client.Close()

	persist := consumer.Persist(auditpostgres.New(db))
	sampler := consumer.NewSampler(cfg.Audit.OpsSampleRate)
	router := consumer.NewRouter(log, persist)
	router.Register(audit.CategorySecurity, consumer.NewSecurityHandler(persist, log))
	router.Register(audit.CategoryOperations, consumer.NewSampledHandler(persist, sampler))

	log.Info("consuming audit topic",
		"topic", cfg.Kafka.AuditTopic,
		"group", cfg.Kafka.ConsumerGroup,
		"ops_sample_rate", cfg.Audit.OpsSampleRate,
	)
	return consumer.New(client, router, log).Run(ctx)
}
