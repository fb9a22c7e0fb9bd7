package person

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmehdipour/person-service/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EventTopic is the logical channel the relay publishes person events to.
const EventTopic = "person_events"

// deletedPayload is what goes on the wire for a delete: no post-state
// exists, so the identifier alone is the snapshot.
type deletedPayload struct {
	ID uuid.UUID `json:"id"`
}

// Service is the transactional mutation coordinator. It is the only
// component that opens, commits, or rolls back transactions: every
// mutation writes its entity row and its outbox row in one transaction,
// so either both are persisted or neither is.
type Service struct {
	db      *sqlx.DB
	persons repository.PersonsRepository
	outbox  repository.OutboxRepository
	tracer  trace.Tracer
	log     *zap.Logger
}

func New(
	db *sqlx.DB,
	personsRepo repository.PersonsRepository,
	outboxRepo repository.OutboxRepository,
	tracer trace.Tracer,
	log *zap.Logger,
) *Service {
	return &Service{
		db:      db,
		persons: personsRepo,
		outbox:  outboxRepo,
		tracer:  tracer,
		log:     log,
	}
}

// begin opens the mutation transaction. A failure here means nothing
// was attempted yet.
func (s *Service) begin(ctx context.Context, op string) (*sqlx.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &repository.Error{Kind: repository.KindTransaction, Op: op, Err: err}
	}
	return tx, nil
}

// rollback undoes the transaction after a failed step. A rollback that
// itself fails outranks the original error: the caller has to know the
// connection may be wedged.
func (s *Service) rollback(tx *sqlx.Tx, op string, cause error) error {
	if err := tx.Rollback(); err != nil {
		s.log.Error("rollback failed", zap.String("op", op), zap.Error(err), zap.NamedError("cause", cause))
		return &repository.Error{Kind: repository.KindTransaction, Op: op + ".rollback", Err: err}
	}
	return cause
}

func (s *Service) commit(tx *sqlx.Tx, op string) error {
	if err := tx.Commit(); err != nil {
		// The database rolls back on a failed commit; the mutation is
		// not applied, never "maybe applied".
		return &repository.Error{Kind: repository.KindTransaction, Op: op + ".commit", Err: err}
	}
	return nil
}

// CreatePerson mints the id once per invocation, inserts the row, and
// enqueues a "created" event with the persisted snapshot as payload.
func (s *Service) CreatePerson(ctx context.Context, np model.NewPerson) (*model.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person_service.create")
	defer span.End()

	if np.ID == uuid.Nil {
		np.ID = uuid.New()
	}

	tx, err := s.begin(ctx, "person_service.create")
	if err != nil {
		return nil, err
	}

	created, err := s.persons.Create(ctx, tx, np)
	if err != nil {
		return nil, s.rollback(tx, "person_service.create", err)
	}

	if err := s.outbox.Insert(ctx, tx, EventTopic, model.EventPersonCreated, created); err != nil {
		return nil, s.rollback(tx, "person_service.create", err)
	}

	if err := s.commit(tx, "person_service.create"); err != nil {
		return nil, err
	}

	s.log.Info("person created", zap.String("id", created.ID.String()))
	return created, nil
}

// UpdatePerson applies a full-row update and enqueues an "updated"
// event with the post-update snapshot.
func (s *Service) UpdatePerson(ctx context.Context, p model.Person) (*model.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person_service.update")
	defer span.End()

	tx, err := s.begin(ctx, "person_service.update")
	if err != nil {
		return nil, err
	}

	updated, err := s.persons.Update(ctx, tx, p)
	if err != nil {
		return nil, s.rollback(tx, "person_service.update", err)
	}

	if err := s.outbox.Insert(ctx, tx, EventTopic, model.EventPersonUpdated, updated); err != nil {
		return nil, s.rollback(tx, "person_service.update", err)
	}

	if err := s.commit(tx, "person_service.update"); err != nil {
		return nil, err
	}

	s.log.Info("person updated", zap.String("id", updated.ID.String()))
	return updated, nil
}

// DeletePerson removes the row and, only when a row was actually
// removed, enqueues a "deleted" event carrying just the id. Deleting a
// nonexistent id returns false with no event; the empty transaction
// still commits.
func (s *Service) DeletePerson(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "person_service.delete")
	defer span.End()

	tx, err := s.begin(ctx, "person_service.delete")
	if err != nil {
		return false, err
	}

	deleted, err := s.persons.Delete(ctx, tx, id)
	if err != nil {
		return false, s.rollback(tx, "person_service.delete", err)
	}

	if deleted {
		if err := s.outbox.Insert(ctx, tx, EventTopic, model.EventPersonDeleted, deletedPayload{ID: id}); err != nil {
			return false, s.rollback(tx, "person_service.delete", err)
		}
	}

	if err := s.commit(tx, "person_service.delete"); err != nil {
		return false, err
	}

	if deleted {
		s.log.Info("person deleted", zap.String("id", id.String()))
	}
	return deleted, nil
}

// GetPerson is a plain read; nil means not found.
func (s *Service) GetPerson(ctx context.Context, id uuid.UUID) (*model.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person_service.get")
	defer span.End()

	p, err := s.persons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

// ListPersons returns a newest-first page.
func (s *Service) ListPersons(ctx context.Context, offset, limit int) ([]model.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person_service.list")
	defer span.End()

	persons, err := s.persons.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	return persons, nil
}
