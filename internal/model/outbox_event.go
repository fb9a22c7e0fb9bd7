package model

import "time"

type EventStatus string

const (
	EventUnpublished EventStatus = "unpublished"
	EventPublished   EventStatus = "published"
	EventErrored     EventStatus = "errored"
)

func (s EventStatus) String() string {
	return string(s)
}

func (s EventStatus) Valid() bool {
	return s == EventUnpublished || s == EventPublished || s == EventErrored
}

// Event names, fixed by the mutation that produced the event.
const (
	EventPersonCreated = "created"
	EventPersonUpdated = "updated"
	EventPersonDeleted = "deleted"
)

// MaxErrorCount is the retry ceiling: events at or above it stop being
// returned by pending fetches and are never attempted again.
const MaxErrorCount = 10

// OutboxEvent is a row in the outbox table. Payload is the JSON snapshot
// of the entity taken at mutation time; only the status/error/published
// fields change after insert.
type OutboxEvent struct {
	ID           string      `db:"id"` // ULID
	Topic        string      `db:"topic"`
	EventName    string      `db:"event_name"`
	Payload      []byte      `db:"payload"`
	Status       EventStatus `db:"status"`
	CreatedAt    time.Time   `db:"created_at"`
	PublishedAt  *time.Time  `db:"published_at"`
	ErrorCount   int         `db:"error_count"`
	ErrorMessage *string     `db:"error_message"`
}

// Pending reports whether the relay should still attempt this event.
func (e OutboxEvent) Pending() bool {
	return e.PublishedAt == nil && e.ErrorCount < MaxErrorCount
}
