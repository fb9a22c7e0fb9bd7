package model

import (
	"time"

	"github.com/google/uuid"
)

// Person is the DB entity persisted in the persons table.
type Person struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	FirstName  string     `db:"first_name" json:"first_name"`
	MiddleName *string    `db:"middle_name" json:"middle_name,omitempty"`
	LastName   string     `db:"last_name" json:"last_name"`
	Suffix     *string    `db:"suffix" json:"suffix,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// NewPerson carries the caller-supplied fields for an insert. The id is
// minted by the writer, once per invocation, before the transaction opens.
type NewPerson struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	MiddleName *string   `json:"middle_name,omitempty"`
	LastName   string    `json:"last_name"`
	Suffix     *string   `json:"suffix,omitempty"`
}
