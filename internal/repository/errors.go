package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Kind classifies persistence failures so callers can tell "pool is
// down" from "begin/commit broke" from "the statement itself failed".
type Kind string

const (
	KindConnection  Kind = "CONNECTION"
	KindTransaction Kind = "TRANSACTION"
	KindStorage     Kind = "STORAGE"
	KindNotFound    Kind = "NOT_FOUND"
	KindConflict    Kind = "CONFLICT"
)

// Error wraps a driver error with its failure kind and the operation
// that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the failure kind, or KindStorage for errors that did
// not come out of this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}

func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindConflict
}

// uniqueViolation is the Postgres error code raised on duplicate keys.
const uniqueViolation = "23505"

// classify maps a raw driver error onto the taxonomy. sql.ErrNoRows is
// deliberately not handled here: read paths translate it to absence
// before it ever reaches a caller.
func classify(op string, err error) *Error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return newError(KindConflict, op, err)
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return newError(KindConnection, op, err)
	}
	return newError(KindStorage, op, err)
}
