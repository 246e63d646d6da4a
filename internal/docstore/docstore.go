// Package docstore provides a schemaless document store addressed by collection
// name and document id, with Postgres, SQLite and in-memory backends.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned when a document id or field lookup has no match.
var ErrNotFound = errors.New("document not found")

// Fields is the flat field set of a stored document.
type Fields map[string]any

// Document is a stored document together with its store-assigned id.
type Document struct {
	ID     string
	Fields Fields
}

// Store is the contract every backend implements.
// There are no multi-document transactions.
type Store interface {
	// Insert persists fields as a new document and returns it with a freshly
	// generated id. Any "id" key inside fields is ignored.
	Insert(ctx context.Context, collection string, fields Fields) (Document, error)

	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// List returns every document in the collection in store iteration order.
	List(ctx context.Context, collection string) ([]Document, error)

	// FindOne returns the first document whose field equals value, or ErrNotFound.
	// When several documents match, which one is returned depends on iteration order.
	FindOne(ctx context.Context, collection, field string, value any) (Document, error)

	// Merge overlays fields onto an existing document. Keys not present in fields
	// keep their stored values. Returns ErrNotFound if the id does not exist.
	Merge(ctx context.Context, collection, id string, fields Fields) (Document, error)

	// Delete removes the document or returns ErrNotFound.
	Delete(ctx context.Context, collection, id string) error

	// Close releases the backend's resources.
	Close() error
}

// AtomicStore is implemented by backends that can update a single field
// server-side without a read-modify-write round trip.
type AtomicStore interface {
	// Increment adds delta to an integer field (missing counts as zero) and
	// returns the new value.
	Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error)

	// Append adds value to the end of a list field (missing counts as empty).
	Append(ctx context.Context, collection, id, field string, value any) error
}

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Open connects to the backend named by driver.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		return ConnectPostgres(ctx, dsn)
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown document store driver %q", driver)
	}
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateFieldName rejects field names that cannot be used in lookups or
// atomic updates.
func ValidateFieldName(field string) error {
	if !fieldNamePattern.MatchString(field) {
		return fmt.Errorf("invalid field name %q", field)
	}
	return nil
}

// withoutID returns a copy of fields with the reserved "id" key removed.
func withoutID(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// decodeFields unmarshals a JSON object into Fields.
func decodeFields(data []byte) (Fields, error) {
	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}

// toInt64 converts a decoded JSON number to int64. Missing or non-numeric
// values count as zero.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
