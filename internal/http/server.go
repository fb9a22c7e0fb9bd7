package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmehdipour/person-service/internal/config"
	"github.com/jmehdipour/person-service/internal/http/middleware"
	"github.com/jmehdipour/person-service/internal/metrics"
	"github.com/jmehdipour/person-service/internal/repository"
	person "github.com/jmehdipour/person-service/internal/service/person"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, pgDB *sqlx.DB, rds *redis.Client, tracer trace.Tracer, logger *zap.Logger) *Server {
	// repos
	personsRepo := repository.NewPersonsRepository(pgDB, tracer)
	outboxRepo := repository.NewOutboxRepository(pgDB, tracer)

	// services
	personSvc := person.New(pgDB, personsRepo, outboxRepo, tracer, logger)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", rlMW)
	v1.POST("/persons", createPersonHandler(personSvc))
	v1.GET("/persons", listPersonsHandler(personSvc))
	v1.GET("/persons/:id", getPersonHandler(personSvc))
	v1.PUT("/persons/:id", updatePersonHandler(personSvc))
	v1.DELETE("/persons/:id", deletePersonHandler(personSvc))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
