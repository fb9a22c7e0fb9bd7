package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassify_UniqueViolationIsConflict(t *testing.T) {
	err := classify("persons.create", &pq.Error{Code: "23505", Message: "duplicate key"})
	assert.Equal(t, KindConflict, err.Kind)
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestClassify_ConnectionErrors(t *testing.T) {
	assert.Equal(t, KindConnection, classify("op", sql.ErrConnDone).Kind)
	assert.Equal(t, KindConnection, classify("op", sql.ErrTxDone).Kind)
}

func TestClassify_DefaultIsStorage(t *testing.T) {
	err := classify("outbox.insert", errors.New("disk full"))
	assert.Equal(t, KindStorage, err.Kind)
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := newError(KindNotFound, "persons.update", sql.ErrNoRows)
	wrapped := fmt.Errorf("update person: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, KindStorage, KindOf(errors.New("plain")))
}

func TestError_MessageIncludesOpAndKind(t *testing.T) {
	err := newError(KindTransaction, "person_service.create.commit", errors.New("broken pipe"))
	assert.Contains(t, err.Error(), "person_service.create.commit")
	assert.Contains(t, err.Error(), "TRANSACTION")
	assert.ErrorContains(t, err, "broken pipe")
}
