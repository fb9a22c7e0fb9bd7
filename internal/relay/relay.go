package relay

import (
	"context"
	"time"

	"github.com/jmehdipour/person-service/internal/metrics"
	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmehdipour/person-service/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Publisher is the transport side of the relay; the Kafka producer
// satisfies it, tests fake it.
type Publisher interface {
	Publish(ctx context.Context, topic, eventName, key string, value []byte) error
}

// Relay drains pending outbox rows and forwards them to the transport:
// - claims a batch (FOR UPDATE SKIP LOCKED inside its own transaction),
// - publishes each event,
// - marks exactly one of published/errored per attempt,
// - commits the claim.
// A crash between publish and commit re-delivers the batch later, which
// is the at-least-once contract working as intended.
type Relay struct {
	// Dependencies
	DB        *sqlx.DB
	Outbox    repository.OutboxRepository
	Publisher Publisher
	Log       *zap.Logger

	// Behavior
	BatchSize    int           // max events claimed per drain cycle
	PollInterval time.Duration // idle wait between drain cycles
}

// New builds a relay with sane defaults.
func New(db *sqlx.DB, outboxRepo repository.OutboxRepository, pub Publisher, log *zap.Logger) *Relay {
	return &Relay{
		DB:           db,
		Outbox:       outboxRepo,
		Publisher:    pub,
		Log:          log,
		BatchSize:    repository.DefaultPendingBatch,
		PollInterval: time.Second,
	}
}

// Run polls until ctx is cancelled. A full batch triggers an immediate
// follow-up drain; an empty or short one waits out the poll interval.
func (r *Relay) Run(ctx context.Context) error {
	if r.BatchSize <= 0 {
		r.BatchSize = repository.DefaultPendingBatch
	}
	if r.PollInterval <= 0 {
		r.PollInterval = time.Second
	}

	for {
		n, err := r.DrainOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Log.Error("drain cycle failed", zap.Error(err))
		}
		if n >= r.BatchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}
}

// DrainOnce claims one batch, attempts each event, and reports how many
// events it processed. Status writes join the claim transaction so they
// land on the rows this instance has locked.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	events, err := r.Outbox.GetPending(ctx, tx, r.BatchSize)
	if err != nil {
		return 0, err
	}

	for _, e := range events {
		if err := r.attempt(ctx, tx, e); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), nil
}

func (r *Relay) attempt(ctx context.Context, tx *sqlx.Tx, e model.OutboxEvent) error {
	if err := r.Publisher.Publish(ctx, e.Topic, e.EventName, e.ID, e.Payload); err != nil {
		r.Log.Warn("publish failed",
			zap.String("event_id", e.ID),
			zap.String("event_name", e.EventName),
			zap.Int("error_count", e.ErrorCount+1),
			zap.Error(err),
		)
		metrics.OutboxEventsTotal.WithLabelValues("errored", e.EventName).Inc()
		return r.Outbox.MarkErrored(ctx, tx, e.ID, err.Error())
	}

	metrics.OutboxEventsTotal.WithLabelValues("published", e.EventName).Inc()
	return r.Outbox.MarkPublished(ctx, tx, e.ID)
}
