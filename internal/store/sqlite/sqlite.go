// Package sqlite persists ordered maps in a single SQLite file. Every map is a
// collection inside the entries table; values are stored as JSON.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"famledger/internal/log"
	"famledger/internal/store"

	_ "modernc.org/sqlite"
)

type DB struct {
	db   *sql.DB
	path string
}

// Open creates the database file if needed and applies pending migrations.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer; the services already serialise calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store opened", log.FieldComponent, log.ComponentStore, "path", dbPath)
	return &DB{db: db, path: dbPath}, nil
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Map is a store.Map backed by one collection of the entries table.
type Map[V any] struct {
	db         *sql.DB
	collection string
}

var _ store.Map[int] = (*Map[int])(nil)

// NewMap returns the ordered map for the named collection.
func NewMap[V any](d *DB, collection string) *Map[V] {
	return &Map[V]{db: d.db, collection: collection}
}

func (m *Map[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	var raw []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE collection = ? AND key = ?`,
		m.collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", m.collection, key, err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s/%s: %w", m.collection, key, err)
	}
	return v, true, nil
}

func (m *Map[V]) Insert(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", m.collection, key, err)
	}
	_, err = m.db.ExecContext(ctx,
		`INSERT INTO entries (collection, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (collection, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		m.collection, key, raw)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", m.collection, key, err)
	}
	return nil
}

func (m *Map[V]) Remove(ctx context.Context, key string) (V, bool, error) {
	var zero V
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, false, fmt.Errorf("begin remove %s/%s: %w", m.collection, key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM entries WHERE collection = ? AND key = ?`,
		m.collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", m.collection, key, err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s/%s: %w", m.collection, key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entries WHERE collection = ? AND key = ?`,
		m.collection, key); err != nil {
		return zero, false, fmt.Errorf("delete %s/%s: %w", m.collection, key, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, false, fmt.Errorf("commit remove %s/%s: %w", m.collection, key, err)
	}
	return v, true, nil
}

// Values returns the collection in ascending key order.
func (m *Map[V]) Values(ctx context.Context) ([]V, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT value FROM entries WHERE collection = ? ORDER BY key`,
		m.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", m.collection, err)
	}
	defer rows.Close()

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
