package repository

import (
	"context"
	"encoding/json"

	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmehdipour/person-service/internal/util"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPendingBatch is the row cap a single relay drain cycle claims.
const DefaultPendingBatch = 50

// OutboxRepository defines persistence for the outbox table. Insert must
// run inside the caller's transaction; that is the whole point of the
// pattern. The remaining methods are the relay's side of the contract:
// if tx is nil they open and commit an internal transaction, otherwise
// they join the given one (the relay passes its claim transaction so
// status writes land on the rows it has locked).
type OutboxRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, topic, eventName string, payload any) error
	GetPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, tx *sqlx.Tx, id string) error
	MarkErrored(ctx context.Context, tx *sqlx.Tx, id string, cause string) error
}

type OutboxRepositoryImpl struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

func NewOutboxRepository(db *sqlx.DB, tracer trace.Tracer) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db, tracer: tracer}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return newError(KindTransaction, "outbox.begin", err)
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	if err := t.Commit(); err != nil {
		return newError(KindTransaction, "outbox.commit", err)
	}
	return nil
}

// Insert serializes the payload and appends an unpublished event row in
// the given transaction. A failure here must roll back the caller's
// entire mutation.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, topic, eventName string, payload any) error {
	ctx, span := r.tracer.Start(ctx, "outbox.insert")
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return newError(KindStorage, "outbox.insert", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox (id, topic, event_name, payload, status, error_count)
		VALUES ($1, $2, $3, $4, $5, 0)
	`, util.NewULID(), topic, eventName, string(body), model.EventUnpublished)
	if err != nil {
		return classify("outbox.insert", err)
	}
	return nil
}

// GetPending claims up to limit undelivered events. FOR UPDATE SKIP
// LOCKED keeps concurrent relay instances off each other's batch; the
// claim lasts only as long as the transaction. Earliest-first ordering
// bounds staleness.
func (r *OutboxRepositoryImpl) GetPending(ctx context.Context, tx *sqlx.Tx, limit int) ([]model.OutboxEvent, error) {
	ctx, span := r.tracer.Start(ctx, "outbox.get_pending")
	defer span.End()

	if limit <= 0 {
		limit = DefaultPendingBatch
	}

	events := []model.OutboxEvent{}
	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &events, `
			SELECT id, topic, event_name, payload, status, created_at,
			       published_at, error_count, error_message
			  FROM outbox
			 WHERE published_at IS NULL AND error_count < $1
			 ORDER BY created_at
			 LIMIT $2
			   FOR UPDATE SKIP LOCKED
		`, model.MaxErrorCount, limit); err != nil {
			return classify("outbox.get_pending", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// MarkPublished records a confirmed publication. COALESCE keeps the
// first published_at, so calling this twice is harmless.
func (r *OutboxRepositoryImpl) MarkPublished(ctx context.Context, tx *sqlx.Tx, id string) error {
	ctx, span := r.tracer.Start(ctx, "outbox.mark_published")
	defer span.End()

	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE outbox
			   SET status = $1, error_count = 0,
			       published_at = COALESCE(published_at, NOW())
			 WHERE id = $2
		`, model.EventPublished, id)
		if err != nil {
			return classify("outbox.mark_published", err)
		}
		return nil
	})
}

// MarkErrored bumps the attempt counter and stores the last failure.
// The retry ceiling is enforced at fetch time, not here: a row can sit
// at the ceiling forever, it just stops being claimed.
func (r *OutboxRepositoryImpl) MarkErrored(ctx context.Context, tx *sqlx.Tx, id string, cause string) error {
	ctx, span := r.tracer.Start(ctx, "outbox.mark_errored")
	defer span.End()

	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE outbox
			   SET status = $1, error_count = error_count + 1, error_message = $2
			 WHERE id = $3
		`, model.EventErrored, cause, id)
		if err != nil {
			return classify("outbox.mark_errored", err)
		}
		return nil
	})
}
