package storage

import (
	"context"
	"fmt"

	"github.com/satishbabariya/audit-go/dbclient"
	"github.com/satishbabariya/audit-go/value"
)

// Writer commits a batch of audit-log entries. The LogEmitter calls Write
// once per intercepted call (sync path) or once per background task
// (async path); the caller decides atomicity by which dbclient.Client the
// Writer was built against.
type Writer interface {
	Write(ctx context.Context, entries []Entry) error
}

// ClientWriter writes audit rows through the audit-log model delegate of
// whatever dbclient.Client it is given. This is what makes the "same
// connection/transaction as the original operation" guarantee fall out
// naturally: give ClientWriter the transaction-scoped Client inside
// Transaction's callback for the sync path, and the base client for the
// async path — no separate transactional bookkeeping is needed in the
// writer itself.
type ClientWriter struct {
	Client   dbclient.Client
	Model    string // audit-log pseudo-model name, default "AuditLog"
}

func NewClientWriter(client dbclient.Client) *ClientWriter {
	return &ClientWriter{Client: client, Model: "AuditLog"}
}

func (w *ClientWriter) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	model := w.Model
	if model == "" {
		model = "AuditLog"
	}
	delegate, ok := w.Client.Delegate(model)
	if !ok {
		return fmt.Errorf("storage: no delegate for %s", model)
	}
	rows := make([]value.Value, len(entries))
	for i, e := range entries {
		rows[i] = entryToValue(e)
	}
	_, err := delegate.CreateMany(ctx, rows)
	if err != nil {
		return fmt.Errorf("storage: write audit log: %w", err)
	}
	return nil
}

func entryToValue(e Entry) value.Value {
	m := map[string]value.Value{
		"id":                value.Str(e.ID),
		"entityCategory":    value.Str(e.EntityCategory),
		"entityType":        value.Str(e.EntityType),
		"entityId":          value.Str(e.EntityID),
		"entityContext":     e.EntityContext,
		"aggregateCategory": value.Str(e.AggregateCategory),
		"aggregateType":     value.Str(e.AggregateType),
		"aggregateId":       value.Str(e.AggregateID),
		"aggregateContext":  e.AggregateContext,
		"actorCategory":     value.Str(e.ActorCategory),
		"actorType":         value.Str(e.ActorType),
		"actorId":           value.Str(e.ActorID),
		"actorContext":      e.ActorContext,
		"action":            value.Str(string(e.Action)),
		"before":            e.Before,
		"after":             e.After,
		"changes":           e.Changes,
		"requestContext":    e.RequestContext,
		"createdAt":         value.Str(e.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00")),
	}
	return value.Map(m)
}
