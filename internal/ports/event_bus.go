package ports

import (
	"context"

	domainscan "veriscan/internal/domain/scan"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
)

// ChangeEvent carries the full new state of a record after an insert or
// update. Events are system-wide; owner filtering is the consumer's job.
// Duplicate delivery must be tolerated by every subscriber.
type ChangeEvent struct {
	Type   EventType             `json:"type"`
	Record domainscan.ScanRecord `json:"record"`
}

// Handler receives change events. It must not block for long; slow consumers
// stall in-process delivery.
type Handler func(ChangeEvent)

// EventBus is the change-notification feed over the scan record store.
// No ordering is guaranteed between a store write and event delivery beyond
// "eventually, if delivery succeeds".
type EventBus interface {
	Publish(ctx context.Context, event ChangeEvent) error

	// Subscribe registers a handler and returns its teardown. A dangling
	// subscription leaks the registration, nothing more.
	Subscribe(ctx context.Context, handler Handler) (unsubscribe func(), err error)
}
