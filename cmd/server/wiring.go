package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	identityservice "policardmed/internal/identity/service"
	"policardmed/internal/identity/store/attempts"
	"policardmed/internal/identity/store/revocation"
	memberservice "policardmed/internal/member/service"
	memberstore "policardmed/internal/member/store/member"
	"policardmed/internal/platform/config"
	platformkafka "policardmed/internal/platform/kafka"
	"policardmed/internal/platform/metrics"
	platformmongo "policardmed/internal/platform/mongo"
	platformpostgres "policardmed/internal/platform/postgres"
	platformredis "policardmed/internal/platform/redis"
	httptransport "policardmed/internal/transport/http"
	"policardmed/pkg/platform/audit"
	"policardmed/pkg/platform/audit/publisher"
	kafkastore "policardmed/pkg/platform/audit/store/kafka"
	auditmemory "policardmed/pkg/platform/audit/store/memory"
	auditpostgres "policardmed/pkg/platform/audit/store/postgres"
	"policardmed/pkg/platform/circuit"
)

// closers releases backing connections in reverse order of acquisition.
type closers struct {
	fns []func() error
	db  *sql.DB
}

func (c *closers) add(fn func() error) {
	c.fns = append(c.fns, fn)
}

func (c *closers) closeAll(log *slog.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			log.Warn("failed to close dependency", "error", err)
		}
	}
}

func openMemberStore(ctx context.Context, cfg *config.Config, deps *closers, log *slog.Logger) (memberservice.MemberStore, map[string]httptransport.HealthCheck, error) {
	checks := map[string]httptransport.HealthCheck{}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := platformpostgres.Open(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		deps.add(db.Close)
		deps.db = db
		checks["postgres"] = db.PingContext

		if cfg.Store.RunMigrations {
			if err := memberstore.Migrate(db); err != nil {
				return nil, nil, err
			}
			log.Info("postgres migrations applied")
		}
		opts := []memberstore.PostgresOption{memberstore.WithPollPeriod(cfg.Store.PollPeriod)}
		if cfg.Store.PostgresNotify {
			opts = append(opts, memberstore.WithNotifications(cfg.Store.PostgresDSN))
		}
		return memberstore.NewPostgres(db, cfg.AppID, opts...), checks, nil

	case config.BackendMongo:
		client, db, err := platformmongo.Connect(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		deps.add(func() error { return client.Disconnect(context.Background()) })
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }

		store := memberstore.NewMongo(db, cfg.AppID)
		if cfg.Store.EnsureMongoIndex {
			if err := store.EnsureIndexes(ctx); err != nil {
				return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
			}
		}
		return store, checks, nil

	default:
		log.Warn("using in-memory member store; data is lost on restart")
		return memberstore.NewInMemory(), checks, nil
	}
}

// buildAuditPublisher picks the primary sink: Kafka when brokers are set,
// otherwise the audit_events table on the postgres backend, otherwise memory.
// Durable sinks fall back to memory while their breaker is open.
func buildAuditPublisher(ctx context.Context, cfg *config.Config, deps *closers, m *metrics.Metrics, log *slog.Logger) (*publisher.Publisher, error) {
	var primary audit.Store
	var name string

	client, err := platformkafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	switch {
	case client != nil:
		deps.add(func() error { client.Close(); return nil })
		if err := kafkastore.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return nil, err
		}
		primary, name = kafkastore.New(client, cfg.Kafka.AuditTopic), "audit-kafka"
	case deps.db != nil:
		primary, name = auditpostgres.New(deps.db), "audit-postgres"
	}

	opts := []publisher.Option{
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetricsWithRegistry(m.Registry())),
	}
	if primary == nil {
		return publisher.NewPublisher(auditmemory.NewInMemoryStore(), opts...), nil
	}
	breaker := circuit.New(name,
		circuit.WithFailureThreshold(cfg.Audit.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.Audit.SuccessThreshold),
	)
	opts = append(opts, publisher.WithFallback(auditmemory.NewInMemoryStore(), breaker))
	log.Info("audit sink configured", "sink", name)
	return publisher.NewPublisher(primary, opts...), nil
}

// buildSessionState shares logged-out tokens and login failure counts through
// Redis when configured so every replica sees them; a single instance keeps
// them in memory.
func buildSessionState(ctx context.Context, cfg *config.Config, deps *closers, checks map[string]httptransport.HealthCheck, checkDuration prometheus.Observer) (identityservice.RevocationList, identityservice.FailureCounter, error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return revocation.NewInMemoryTRL(), attempts.NewInMemory(), nil
	}
	deps.add(client.Close)
	checks["redis"] = client.Health
	return revocation.NewRedisTRL(client.Client, revocation.WithCheckDuration(checkDuration)),
		attempts.NewRedis(client.Client), nil
}
