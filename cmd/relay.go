package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/person-service/internal/config"
	"github.com/jmehdipour/person-service/internal/db"
	"github.com/jmehdipour/person-service/internal/kafka"
	"github.com/jmehdipour/person-service/internal/logger"
	"github.com/jmehdipour/person-service/internal/metrics"
	"github.com/jmehdipour/person-service/internal/relay"
	"github.com/jmehdipour/person-service/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run outbox relay (drain pending events to Kafka)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		metrics.MustRegister(prometheus.DefaultRegisterer)

		pgDB, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.PostgresOpts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pgDB.Close()

		producer := kafka.NewProducerFromConfig(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		})
		defer producer.Close()

		tracer := otel.Tracer("person-service")
		outboxRepo := repository.NewOutboxRepository(pgDB, tracer)

		r := relay.New(pgDB, outboxRepo, producer, logger.Log)

		// tune knobs
		if cfg.Relay.BatchSize > 0 {
			r.BatchSize = cfg.Relay.BatchSize
		}
		if cfg.Relay.PollInterval > 0 {
			r.PollInterval = cfg.Relay.PollInterval
		}

		// graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Printf(">> relay started batchSize=%d pollInterval=%s brokers=%v",
			r.BatchSize, r.PollInterval, cfg.Kafka.Brokers)

		if err := r.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
