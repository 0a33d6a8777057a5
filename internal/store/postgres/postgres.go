// Package postgres persists ordered maps in a Postgres table, one row per
// entry, values stored as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"famledger/internal/store"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/famledger?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

type DB struct {
	db *sql.DB
}

// Open connects using dsn (defaultDSN when empty) and ensures the entries
// table exists.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureEntriesTable(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func ensureEntriesTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS entries (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, key)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure entries table: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Map is a store.Map backed by one collection of the entries table.
type Map[V any] struct {
	db         *sql.DB
	collection string
}

var _ store.Map[int] = (*Map[int])(nil)

func NewMap[V any](d *DB, collection string) *Map[V] {
	return &Map[V]{db: d.db, collection: collection}
}

func (m *Map[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	var raw []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE collection = $1 AND key = $2`,
		m.collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", m.collection, key, err)
	}
	return decode[V](m.collection, key, raw)
}

func (m *Map[V]) Insert(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", m.collection, key, err)
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO entries (collection, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		m.collection, key, raw)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", m.collection, key, err)
	}
	return nil
}

// Remove decodes the stored value before deleting it, so an undecodable row
// is left in place.
func (m *Map[V]) Remove(ctx context.Context, key string) (V, bool, error) {
	var zero V
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, false, fmt.Errorf("begin remove %s/%s: %w", m.collection, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE collection = $1 AND key = $2 FOR UPDATE`,
		m.collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", m.collection, key, err)
	}
	v, _, err := decode[V](m.collection, key, raw)
	if err != nil {
		return zero, false, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE collection = $1 AND key = $2`,
		m.collection, key); err != nil {
		return zero, false, fmt.Errorf("delete %s/%s: %w", m.collection, key, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, false, fmt.Errorf("commit remove %s/%s: %w", m.collection, key, err)
	}
	return v, true, nil
}

// Values returns the collection in byte-wise ascending key order, matching the
// sqlite and memory backends.
func (m *Map[V]) Values(ctx context.Context) ([]V, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT value FROM entries WHERE collection = $1 ORDER BY key COLLATE "C"`,
		m.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.collection, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]V, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.collection, err)
		}
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", m.collection, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", m.collection, err)
	}
	return out, nil
}

func decode[V any](collection, key string, raw []byte) (V, bool, error) {
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero V
		return zero, false, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return v, true, nil
}
