package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/trace"
)

// MaxListLimit caps caller-supplied page sizes so a single listing
// cannot drag the whole table across the wire.
const MaxListLimit = 1000

// PersonsRepository defines persistence for the persons table. Mutating
// methods run inside the transaction handed to them and never open,
// commit, or roll back a transaction of their own.
type PersonsRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Person, error)
	List(ctx context.Context, offset, limit int) ([]model.Person, error)
	Create(ctx context.Context, tx *sqlx.Tx, p model.NewPerson) (*model.Person, error)
	Update(ctx context.Context, tx *sqlx.Tx, p model.Person) (*model.Person, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error)
}

type PersonsRepositoryImpl struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

func NewPersonsRepository(db *sqlx.DB, tracer trace.Tracer) *PersonsRepositoryImpl {
	return &PersonsRepositoryImpl{db: db, tracer: tracer}
}

var _ PersonsRepository = (*PersonsRepositoryImpl)(nil)

const personColumns = `id, first_name, middle_name, last_name, suffix, created_at, updated_at`

func (r *PersonsRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*model.Person, error) {
	ctx, span := r.tracer.Start(ctx, "persons.get_by_id")
	defer span.End()

	var p model.Person
	err := r.db.GetContext(ctx, &p, `
		SELECT `+personColumns+`
		  FROM persons
		 WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("persons.get_by_id", err)
	}
	return &p, nil
}

func (r *PersonsRepositoryImpl) List(ctx context.Context, offset, limit int) ([]model.Person, error) {
	ctx, span := r.tracer.Start(ctx, "persons.list")
	defer span.End()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	persons := []model.Person{}
	err := r.db.SelectContext(ctx, &persons, `
		SELECT `+personColumns+`
		  FROM persons
		 ORDER BY created_at DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, classify("persons.list", err)
	}
	return persons, nil
}

// Create inserts a new row with the caller-minted id. created_at comes
// back from the database, not the clock in this process.
func (r *PersonsRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, np model.NewPerson) (*model.Person, error) {
	ctx, span := r.tracer.Start(ctx, "persons.create")
	defer span.End()

	var p model.Person
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO persons (id, first_name, middle_name, last_name, suffix)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+personColumns+`
	`, np.ID, np.FirstName, np.MiddleName, np.LastName, np.Suffix).StructScan(&p)
	if err != nil {
		return nil, classify("persons.create", err)
	}
	return &p, nil
}

// Update is a full-row update; updated_at moves on every call. A miss
// surfaces as KindNotFound, signaled by RETURNING producing no row.
func (r *PersonsRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, in model.Person) (*model.Person, error) {
	ctx, span := r.tracer.Start(ctx, "persons.update")
	defer span.End()

	var p model.Person
	err := tx.QueryRowxContext(ctx, `
		UPDATE persons
		   SET first_name = $1, middle_name = $2, last_name = $3, suffix = $4,
		       updated_at = NOW()
		 WHERE id = $5
		RETURNING `+personColumns+`
	`, in.FirstName, in.MiddleName, in.LastName, in.Suffix, in.ID).StructScan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(KindNotFound, "persons.update", err)
	}
	if err != nil {
		return nil, classify("persons.update", err)
	}
	return &p, nil
}

// Delete removes the row if it exists. Absence is a normal outcome
// (false, nil), never an error.
func (r *PersonsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "persons.delete")
	defer span.End()

	res, err := tx.ExecContext(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return false, classify("persons.delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("persons.delete", err)
	}
	return n > 0, nil
}
