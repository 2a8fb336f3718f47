package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/audit-go/value"
)

// Dialect picks the SQL driver and placeholder style, grounded on
// runtime/client/client.go's getDriverName provider-name mapping.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite3"
)

func driverName(d Dialect) string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite3"
	default:
		return string(d)
	}
}

// SQLClient is a minimal generic SQL-backed DbClient: one table per model
// (TableName, default strings.ToLower(model)+"s"), columns matching the
// top-level keys of each record's Value map. It exists to give the engine
// a real database option alongside Memory, exercising the same driver
// dependencies (mysql, lib/pq, sqlite3) a generated client's own
// client.go selects between.
type SQLClient struct {
	db      *sql.DB
	dialect Dialect
	table   func(model string) string
	execer  execer // set only on the transaction-scoped client returned to fn
}

// Open connects using the driver selected by dialect, mirroring
// runtime/client/client.go's getDriverName/sql.Open pairing.
func Open(dialect Dialect, dsn string) (*SQLClient, error) {
	db, err := sql.Open(driverName(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("dbclient: open %s: %w", dialect, err)
	}
	return &SQLClient{db: db, dialect: dialect, table: defaultTableName}, nil
}

func defaultTableName(model string) string {
	return strings.ToLower(model) + "s"
}

// WithTableNaming overrides the default model->table mapping.
func (c *SQLClient) WithTableNaming(fn func(model string) string) *SQLClient {
	c.table = fn
	return c
}

func (c *SQLClient) placeholder(n int) string {
	if c.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (c *SQLClient) Delegate(model string) (Delegate, bool) {
	return &sqlDelegate{model: model, table: c.table(model), db: c.db, c: c}, true
}

func (c *SQLClient) Transaction(ctx context.Context, fn func(ctx context.Context, tx Client) error) error {
	if c.execer != nil {
		return fn(ctx, c)
	}
	return c.TransactionWithIsolation(ctx, sql.LevelDefault, fn)
}

// TransactionWithIsolation runs fn inside a transaction opened at the
// given isolation level, rolling back on error or panic. Grounded on
// runtime/client/transaction.go's IsolationLevel/TransactionWithOptions
// pair, collapsed onto database/sql's own sql.IsolationLevel instead of a
// parallel enum.
func (c *SQLClient) TransactionWithIsolation(ctx context.Context, level sql.IsolationLevel, fn func(ctx context.Context, tx Client) error) (err error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return fmt.Errorf("dbclient: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txClient := &SQLClient{db: nil, dialect: c.dialect, table: c.table}
	txClient.execer = tx
	if err := fn(ctx, txClient); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// execer abstracts over *sql.DB and *sql.Tx so Delegate methods work the
// same whether or not a transaction is active.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ execer = (*sql.DB)(nil)
var _ execer = (*sql.Tx)(nil)

type sqlDelegate struct {
	model string
	table string
	db    *sql.DB
	c     *SQLClient
}

func (c *SQLClient) exec() execer {
	if c.execer != nil {
		return c.execer
	}
	return c.db
}

func (d *sqlDelegate) columnsAndValues(m map[string]value.Value) ([]string, []interface{}) {
	cols := make([]string, 0, len(m))
	vals := make([]interface{}, 0, len(m))
	for k, v := range m {
		cols = append(cols, k)
		vals = append(vals, value.ToAny(v))
	}
	return cols, vals
}

func (d *sqlDelegate) FindUnique(ctx context.Context, where value.Value) (value.Value, error) {
	rows, err := d.FindMany(ctx, where)
	if err != nil || len(rows) == 0 {
		return value.Null(), err
	}
	return rows[0], nil
}

func (d *sqlDelegate) FindMany(ctx context.Context, where value.Value) ([]value.Value, error) {
	whereSQL, args := d.whereClause(where)
	query := fmt.Sprintf("SELECT * FROM %s%s", d.table, whereSQL)
	rows, err := d.c.exec().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dbclient: query %s: %w", d.table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (d *sqlDelegate) whereClause(where value.Value) (string, []interface{}) {
	m, ok := where.AsMap()
	if !ok || len(m) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(m))
	args := make([]interface{}, 0, len(m))
	i := 1
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s = %s", k, d.c.placeholder(i)))
		args = append(args, value.ToAny(v))
		i++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func scanRows(rows *sql.Rows) ([]value.Value, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []value.Value{}
	for rows.Next() {
		ptrs := make([]interface{}, len(cols))
		vals := make([]interface{}, len(cols))
		for i := range ptrs {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := map[string]value.Value{}
		for i, c := range cols {
			rec[c] = value.FromAny(vals[i])
		}
		out = append(out, value.Map(rec))
	}
	return out, rows.Err()
}

func (d *sqlDelegate) Create(ctx context.Context, data value.Value) (value.Value, error) {
	m, _ := data.AsMap()
	cols, vals := d.columnsAndValues(m)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = d.c.placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := d.c.exec().ExecContext(ctx, query, vals...); err != nil {
		return value.Null(), fmt.Errorf("dbclient: insert %s: %w", d.table, err)
	}
	return data, nil
}

func (d *sqlDelegate) CreateMany(ctx context.Context, data []value.Value) ([]value.Value, error) {
	out := make([]value.Value, 0, len(data))
	for _, item := range data {
		row, err := d.Create(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (d *sqlDelegate) Update(ctx context.Context, where, data value.Value) (value.Value, error) {
	m, _ := data.AsMap()
	cols, vals := d.columnsAndValues(m)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, d.c.placeholder(i+1))
	}
	whereSQL, whereArgs := d.whereClauseOffset(where, len(cols)+1)
	query := fmt.Sprintf("UPDATE %s SET %s%s", d.table, strings.Join(sets, ", "), whereSQL)
	if _, err := d.c.exec().ExecContext(ctx, query, append(vals, whereArgs...)...); err != nil {
		return value.Null(), fmt.Errorf("dbclient: update %s: %w", d.table, err)
	}
	return d.FindUnique(ctx, where)
}

func (d *sqlDelegate) whereClauseOffset(where value.Value, startAt int) (string, []interface{}) {
	m, ok := where.AsMap()
	if !ok || len(m) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(m))
	args := make([]interface{}, 0, len(m))
	i := startAt
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s = %s", k, d.c.placeholder(i)))
		args = append(args, value.ToAny(v))
		i++
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (d *sqlDelegate) UpdateMany(ctx context.Context, where, data value.Value) ([]value.Value, error) {
	m, _ := data.AsMap()
	cols, vals := d.columnsAndValues(m)
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, d.c.placeholder(i+1))
	}
	whereSQL, whereArgs := d.whereClauseOffset(where, len(cols)+1)
	query := fmt.Sprintf("UPDATE %s SET %s%s", d.table, strings.Join(sets, ", "), whereSQL)
	if _, err := d.c.exec().ExecContext(ctx, query, append(vals, whereArgs...)...); err != nil {
		return nil, fmt.Errorf("dbclient: update many %s: %w", d.table, err)
	}
	return d.FindMany(ctx, where)
}

func (d *sqlDelegate) Delete(ctx context.Context, where value.Value) (value.Value, error) {
	row, err := d.FindUnique(ctx, where)
	if err != nil {
		return value.Null(), err
	}
	whereSQL, args := d.whereClause(where)
	query := fmt.Sprintf("DELETE FROM %s%s", d.table, whereSQL)
	if _, err := d.c.exec().ExecContext(ctx, query, args...); err != nil {
		return value.Null(), fmt.Errorf("dbclient: delete %s: %w", d.table, err)
	}
	return row, nil
}

func (d *sqlDelegate) DeleteMany(ctx context.Context, where value.Value) ([]value.Value, error) {
	rows, err := d.FindMany(ctx, where)
	if err != nil {
		return nil, err
	}
	whereSQL, args := d.whereClause(where)
	query := fmt.Sprintf("DELETE FROM %s%s", d.table, whereSQL)
	if _, err := d.c.exec().ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("dbclient: delete many %s: %w", d.table, err)
	}
	return rows, nil
}

func (d *sqlDelegate) Upsert(ctx context.Context, where, create, update value.Value) (value.Value, bool, error) {
	existing, err := d.FindUnique(ctx, where)
	if err != nil {
		return value.Null(), false, err
	}
	if !existing.IsNull() {
		row, err := d.Update(ctx, where, update)
		return row, true, err
	}
	row, err := d.Create(ctx, create)
	return row, false, err
}
