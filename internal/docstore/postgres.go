package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL DEFAULT gen_random_uuid()::text,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
)`

// PostgresStore keeps every collection in a single JSONB documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and makes sure the documents
// table exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Insert implements Store.
func (s *PostgresStore) Insert(ctx context.Context, collection string, fields Fields) (Document, error) {
	payload, err := json.Marshal(withoutID(fields))
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document: %w", err)
	}

	var id string
	var data []byte
	err = s.pool.QueryRow(ctx,
		`INSERT INTO documents (collection, data)
		 VALUES ($1, $2::jsonb)
		 RETURNING id, data`,
		collection, string(payload),
	).Scan(&id, &data)
	if err != nil {
		return Document{}, fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return toDocument(id, data)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return toDocument(id, data)
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY created_at`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		doc, err := toDocument(id, data)
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

// FindOne implements Store.
func (s *PostgresStore) FindOne(ctx context.Context, collection, field string, value any) (Document, error) {
	if err := ValidateFieldName(field); err != nil {
		return Document{}, err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode lookup value: %w", err)
	}

	var id string
	var data []byte
	err = s.pool.QueryRow(ctx,
		`SELECT id, data FROM documents
		 WHERE collection = $1 AND data -> $2::text = $3::jsonb
		 LIMIT 1`,
		collection, field, string(want),
	).Scan(&id, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to find %s by %s: %w", collection, field, err)
	}
	return toDocument(id, data)
}

// Merge implements Store. The overlay is shallow: top-level keys in fields
// replace stored keys, everything else is kept.
func (s *PostgresStore) Merge(ctx context.Context, collection, id string, fields Fields) (Document, error) {
	patch, err := json.Marshal(withoutID(fields))
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document: %w", err)
	}

	var data []byte
	err = s.pool.QueryRow(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		 WHERE collection = $1 AND id = $2
		 RETURNING data`,
		collection, id, string(patch),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return toDocument(id, data)
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Increment implements AtomicStore with a single UPDATE statement.
func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	if err := ValidateFieldName(field); err != nil {
		return 0, err
	}

	var value int64
	err := s.pool.QueryRow(ctx,
		`UPDATE documents
		 SET data = jsonb_set(data, ARRAY[$3::text], to_jsonb(COALESCE((data ->> $3::text)::bigint, 0) + $4::bigint)),
		     updated_at = NOW()
		 WHERE collection = $1 AND id = $2
		 RETURNING (data ->> $3::text)::bigint`,
		collection, id, field, delta,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment %s on %s/%s: %w", field, collection, id, err)
	}
	return value, nil
}

// Append implements AtomicStore with a single UPDATE statement.
func (s *PostgresStore) Append(ctx context.Context, collection, id, field string, value any) error {
	if err := ValidateFieldName(field); err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode list entry: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents
		 SET data = jsonb_set(
		         data,
		         ARRAY[$3::text],
		         (CASE WHEN jsonb_typeof(data -> $3::text) = 'array' THEN data -> $3::text ELSE '[]'::jsonb END)
		             || jsonb_build_array($4::jsonb)),
		     updated_at = NOW()
		 WHERE collection = $1 AND id = $2`,
		collection, id, field, string(encoded),
	)
	if err != nil {
		return fmt.Errorf("failed to append to %s on %s/%s: %w", field, collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func toDocument(id string, data []byte) (Document, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}
