// Package storage defines the persisted audit-log row layout and the
// Writer trait the LogEmitter uses to commit it.
package storage

import (
	"time"

	"github.com/satishbabariya/audit-go/value"
)

// Action is the normalized action recorded on an Entry: always one of
// create, update, or delete.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entry is the persisted audit-log row. Nullable JSON columns use
// value.Value so the Null()/non-null distinction survives this layer; a
// Null value marshals to JSON null.
type Entry struct {
	ID string

	EntityCategory string
	EntityType     string
	EntityID       string
	EntityContext  value.Value

	AggregateCategory string
	AggregateType     string
	AggregateID       string
	AggregateContext  value.Value

	ActorCategory string
	ActorType     string
	ActorID       string
	ActorContext  value.Value

	Action Action

	Before  value.Value
	After   value.Value
	Changes value.Value

	RequestContext value.Value

	CreatedAt time.Time
}
