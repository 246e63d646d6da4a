package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
)`

// SQLiteStore is a single-file Store built on SQLite's JSON functions.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens a SQLite database at the given path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, fields Fields) (Document, error) {
	payload, err := json.Marshal(withoutID(fields))
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, json(?))`,
		collection, id, string(payload),
	); err != nil {
		return Document{}, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return toDocument(id, payload)
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return toDocument(id, []byte(data))
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		doc, err := toDocument(id, []byte(data))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return docs, nil
}

// FindOne implements Store. Only scalar values (strings, numbers, booleans)
// can be matched.
func (s *SQLiteStore) FindOne(ctx context.Context, collection, field string, value any) (Document, error) {
	if err := ValidateFieldName(field); err != nil {
		return Document{}, err
	}

	var id, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data FROM documents
		 WHERE collection = ? AND json_extract(data, ?) = ?
		 ORDER BY rowid LIMIT 1`,
		collection, "$."+field, value,
	).Scan(&id, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to find %s by %s: %w", collection, field, err)
	}
	return toDocument(id, []byte(data))
}

// Merge implements Store using json_patch.
func (s *SQLiteStore) Merge(ctx context.Context, collection, id string, fields Fields) (Document, error) {
	patch, err := json.Marshal(withoutID(fields))
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?), updated_at = CURRENT_TIMESTAMP
		 WHERE collection = ? AND id = ?`,
		string(patch), collection, id,
	)
	if err != nil {
		return Document{}, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Document{}, ErrNotFound
	}
	return s.Get(ctx, collection, id)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Increment implements AtomicStore.
func (s *SQLiteStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	if err := ValidateFieldName(field); err != nil {
		return 0, err
	}
	path := "$." + field

	var value int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE documents
		 SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE collection = ? AND id = ?
		 RETURNING json_extract(data, ?)`,
		path, path, delta, collection, id, path,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment %s on %s/%s: %w", field, collection, id, err)
	}
	return value, nil
}

// Append implements AtomicStore.
func (s *SQLiteStore) Append(ctx context.Context, collection, id, field string, value any) error {
	if err := ValidateFieldName(field); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode list entry: %w", err)
	}
	path := "$." + field

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents
		 SET data = json_insert(
		         CASE WHEN json_type(data, ?) = 'array' THEN data ELSE json_set(data, ?, json('[]')) END,
		         ?, json(?)),
		     updated_at = CURRENT_TIMESTAMP
		 WHERE collection = ? AND id = ?`,
		path, path, path+"[#]", string(encoded), collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to append to %s on %s/%s: %w", field, collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
