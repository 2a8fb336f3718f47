// Package dbclient defines the injected DbClient trait: a dynamic
// mapping from model name to a delegate exposing the CRUD
// operations the engine needs, plus a transaction entry point. It is
// grounded on v3/runtime/transaction.go's Transaction interface and
// runtime/client/client.go's PrismaClient, generalized from a single
// concrete client to an injected trait with swappable implementations
// (Memory for tests/demo, SQL for a real backend).
package dbclient

import (
	"context"

	"github.com/satishbabariya/audit-go/value"
)

// Delegate is the per-model handle. Within a transaction, the same shape
// is exposed by the transactional handle obtained from Client.Transaction's
// callback argument — callers never need a separate "transactional
// delegate" type.
type Delegate interface {
	FindUnique(ctx context.Context, where value.Value) (value.Value, error)
	FindMany(ctx context.Context, where value.Value) ([]value.Value, error)
	Create(ctx context.Context, data value.Value) (value.Value, error)
	CreateMany(ctx context.Context, data []value.Value) ([]value.Value, error)
	Update(ctx context.Context, where, data value.Value) (value.Value, error)
	UpdateMany(ctx context.Context, where, data value.Value) ([]value.Value, error)
	Delete(ctx context.Context, where value.Value) (value.Value, error)
	DeleteMany(ctx context.Context, where value.Value) ([]value.Value, error)
	// Upsert reports existed=true when a row matching where was found
	// (and thus the update branch ran), false when none was found (and
	// the create branch ran) — the ground truth the pre-fetcher's phase-2
	// branch pruning is verified against.
	Upsert(ctx context.Context, where, create, update value.Value) (row value.Value, existed bool, err error)
}

// ErrRecordNotFound is returned by FindUnique and Update/Delete when no
// row matches the given where clause.
var ErrRecordNotFound = errorString("record not found")

type errorString string

func (e errorString) Error() string { return string(e) }

// Client is the injected trait the engine wraps. Delegate uses
// lower-camel-case... no: it uses the canonical PascalCase model name
// handed down from the pipeline (OperationCall.Model); it is the
// concrete binding's job to map that to its own naming convention.
type Client interface {
	Delegate(model string) (Delegate, bool)
	// Transaction runs fn with a Client bound to one transaction. If fn
	// returns an error, every write fn performed through tx is rolled
	// back; if fn returns nil, all of it commits atomically. Nested calls
	// enlist onto the same transaction rather than opening a new one.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Client) error) error
}
