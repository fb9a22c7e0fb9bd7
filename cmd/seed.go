package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jmehdipour/person-service/internal/config"
	"github.com/jmehdipour/person-service/internal/db"
	"github.com/jmehdipour/person-service/internal/logger"
	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmehdipour/person-service/internal/repository"
	person "github.com/jmehdipour/person-service/internal/service/person"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo persons",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)

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

		tracer := otel.Tracer("person-service")
		svc := person.New(
			pgDB,
			repository.NewPersonsRepository(pgDB, tracer),
			repository.NewOutboxRepository(pgDB, tracer),
			tracer,
			logger.Log,
		)

		log.Println(">> Seeding demo persons...")

		// Seeding goes through the coordinator so the demo rows come
		// with their outbox events, same as real traffic.
		demo := []model.NewPerson{
			{FirstName: "Ada", LastName: "Lovelace"},
			{FirstName: "Grace", MiddleName: strptr("Brewster"), LastName: "Hopper"},
			{FirstName: "Edsger", LastName: "Dijkstra", Suffix: strptr("PhD")},
		}
		for _, np := range demo {
			created, err := svc.CreatePerson(context.Background(), np)
			if err != nil {
				return fmt.Errorf("seed person %s %s: %w", np.FirstName, np.LastName, err)
			}
			log.Printf("   created %s %s (%s)", created.FirstName, created.LastName, created.ID)
		}

		log.Println(">> Seed completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func strptr(s string) *string { return &s }
