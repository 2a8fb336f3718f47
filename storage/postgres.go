package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/satishbabariya/audit-go/value"
)

// PostgresWriter writes Entry rows directly to a dedicated auditLog table
// via database/sql + lib/pq (as distinct from ClientWriter, which
// round-trips through the injected DbClient so sync writes can share the
// caller's transaction). Use PostgresWriter when the audit store lives in
// a separate database or schema from the ORM's own tables.
type PostgresWriter struct {
	db        *sql.DB
	tableName string
}

// NewPostgresWriter wraps an already-open *sql.DB (opened with
// sql.Open("postgres", dsn)); callers typically share this *sql.DB with
// their own connection pool.
func NewPostgresWriter(db *sql.DB) *PostgresWriter {
	return &PostgresWriter{db: db, tableName: "audit_log"}
}

func (w *PostgresWriter) WithTable(name string) *PostgresWriter {
	w.tableName = name
	return w
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	entity_category TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	entity_context JSONB,
	aggregate_category TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	aggregate_context JSONB,
	actor_category TEXT NOT NULL,
	actor_type TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	actor_context JSONB,
	action TEXT NOT NULL,
	before JSONB,
	after JSONB,
	changes JSONB,
	request_context JSONB,
	created_at TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the audit log table if it does not already exist.
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, fmt.Sprintf(createTableSQL, w.tableName))
	return err
}

const insertSQL = `
INSERT INTO %s (
	id, entity_category, entity_type, entity_id, entity_context,
	aggregate_category, aggregate_type, aggregate_id, aggregate_context,
	actor_category, actor_type, actor_id, actor_context,
	action, before, after, changes, request_context, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

func (w *PostgresWriter) Write(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	query := fmt.Sprintf(insertSQL, w.tableName)
	for _, e := range entries {
		entityCtx, err1 := marshalJSONB(e.EntityContext)
		aggCtx, err2 := marshalJSONB(e.AggregateContext)
		actorCtx, err3 := marshalJSONB(e.ActorContext)
		before, err4 := marshalJSONB(e.Before)
		after, err5 := marshalJSONB(e.After)
		changes, err6 := marshalJSONB(e.Changes)
		reqCtx, err7 := marshalJSONB(e.RequestContext)
		if err := firstErr(err1, err2, err3, err4, err5, err6, err7); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("storage: marshal entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.EntityCategory, e.EntityType, e.EntityID, entityCtx,
			e.AggregateCategory, e.AggregateType, e.AggregateID, aggCtx,
			e.ActorCategory, e.ActorType, e.ActorID, actorCtx,
			string(e.Action), before, after, changes, reqCtx, e.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("storage: insert audit row: %w", err)
		}
	}
	return tx.Commit()
}

func marshalJSONB(v value.Value) ([]byte, error) {
	if v.IsNull() {
		return nil, nil
	}
	return json.Marshal(value.ToAny(v))
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

var _ Writer = (*PostgresWriter)(nil)
