package person

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmehdipour/person-service/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var personCols = []string{"id", "first_name", "middle_name", "last_name", "suffix", "created_at", "updated_at"}

// argContains matches any string/bytes argument containing the substring.
type argContains struct{ sub string }

func (a argContains) Match(v driver.Value) bool {
	switch s := v.(type) {
	case string:
		return strings.Contains(s, a.sub)
	case []byte:
		return strings.Contains(string(s), a.sub)
	}
	return false
}

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	tracer := otel.Tracer("test")
	svc := New(
		sqlxDB,
		repository.NewPersonsRepository(sqlxDB, tracer),
		repository.NewOutboxRepository(sqlxDB, tracer),
		tracer,
		zap.NewNop(),
	)
	return svc, mock
}

func TestCreatePerson_CommitsEntityAndEventTogether(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO persons").
		WithArgs(sqlmock.AnyArg(), "Ada", nil, "Lovelace", nil).
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(uuid.NewString(), "Ada", nil, "Lovelace", nil, time.Now(), nil))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), EventTopic, model.EventPersonCreated, argContains{"Lovelace"}, model.EventUnpublished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := svc.CreatePerson(context.Background(), model.NewPerson{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePerson_OutboxFailureRollsBackEntityWrite(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO persons").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(uuid.NewString(), "Ada", nil, "Lovelace", nil, time.Now(), nil))
	mock.ExpectExec("INSERT INTO outbox").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.CreatePerson(context.Background(), model.NewPerson{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.Error(t, err)
	// rollback happened, commit never issued
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePerson_EntityFailureSkipsOutbox(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO persons").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := svc.CreatePerson(context.Background(), model.NewPerson{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePerson_BeginFailure(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	_, err := svc.CreatePerson(context.Background(), model.NewPerson{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.Error(t, err)
	assert.Equal(t, repository.KindTransaction, repository.KindOf(err))
}

func TestCreatePerson_CommitFailureIsNotApplied(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO persons").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(uuid.NewString(), "Ada", nil, "Lovelace", nil, time.Now(), nil))
	mock.ExpectExec("INSERT INTO outbox").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("server closed connection"))

	p, err := svc.CreatePerson(context.Background(), model.NewPerson{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	assert.Error(t, err)
	assert.Nil(t, p)
	assert.Equal(t, repository.KindTransaction, repository.KindOf(err))
}

func TestUpdatePerson_EnqueuesUpdatedSnapshot(t *testing.T) {
	svc, mock := newMockService(t)

	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE persons SET").
		WithArgs("Ada", nil, "King", nil, id).
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(id.String(), "Ada", nil, "King", nil, now.Add(-time.Hour), now))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), EventTopic, model.EventPersonUpdated, argContains{"King"}, model.EventUnpublished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := svc.UpdatePerson(context.Background(), model.Person{
		ID:        id,
		FirstName: "Ada",
		LastName:  "King",
	})
	assert.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "King", updated.LastName)
	require.NotNil(t, updated.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePerson_MissingRowRollsBack(t *testing.T) {
	svc, mock := newMockService(t)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE persons SET").
		WillReturnRows(sqlmock.NewRows(personCols))
	mock.ExpectRollback()

	_, err := svc.UpdatePerson(context.Background(), model.Person{
		ID:        id,
		FirstName: "Ada",
		LastName:  "King",
	})
	assert.Error(t, err)
	assert.True(t, repository.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePerson_RemovedRowEnqueuesIDOnlyEvent(t *testing.T) {
	svc, mock := newMockService(t)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM persons WHERE id").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), EventTopic, model.EventPersonDeleted, argContains{id.String()}, model.EventUnpublished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := svc.DeletePerson(context.Background(), id)
	assert.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePerson_NoopProducesNoEvent(t *testing.T) {
	svc, mock := newMockService(t)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM persons WHERE id").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	deleted, err := svc.DeletePerson(context.Background(), id)
	assert.NoError(t, err)
	assert.False(t, deleted)
	// the empty transaction commits; no outbox statement was issued
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The end-to-end scenario from the service's point of view: create Ada
// Lovelace, then rename to King. Each mutation carries its own snapshot;
// the created event is never touched by the update.
func TestCreateThenUpdate_ScenarioPayloads(t *testing.T) {
	svc, mock := newMockService(t)

	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO persons").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(id.String(), "Ada", nil, "Lovelace", nil, now, nil))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), EventTopic, model.EventPersonCreated, argContains{"Lovelace"}, model.EventUnpublished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE persons SET").
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(id.String(), "Ada", nil, "King", nil, now, now.Add(time.Minute)))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), EventTopic, model.EventPersonUpdated, argContains{"King"}, model.EventUnpublished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := svc.CreatePerson(context.Background(), model.NewPerson{
		ID:        id,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)

	updated, err := svc.UpdatePerson(context.Background(), model.Person{
		ID:        id,
		FirstName: "Ada",
		LastName:  "King",
	})
	require.NoError(t, err)
	assert.Equal(t, "King", updated.LastName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPerson_PassesThroughAbsence(t *testing.T) {
	svc, mock := newMockService(t)

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM persons WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(personCols))

	p, err := svc.GetPerson(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestListPersons_Page(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery("SELECT (.+) FROM persons ORDER BY created_at DESC").
		WithArgs(0, 10).
		WillReturnRows(sqlmock.NewRows(personCols).
			AddRow(uuid.NewString(), "Ada", nil, "Lovelace", nil, time.Now(), nil))

	persons, err := svc.ListPersons(context.Background(), 0, 10)
	assert.NoError(t, err)
	assert.Len(t, persons, 1)
}
