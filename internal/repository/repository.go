// Package repository provides typed access to document store collections.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/types"
)

// ErrNotFound is returned when an id or field lookup has no match.
var ErrNotFound = docstore.ErrNotFound

// CounterMode selects how counter and list updates reach the store.
type CounterMode int

const (
	// ReadModifyWrite reads the document, changes the value locally and writes
	// it back. Concurrent updates to the same field can be lost.
	ReadModifyWrite CounterMode = iota
	// Atomic delegates the update to the store's single-statement primitive.
	Atomic
)

// String returns the mode name used in logs.
func (m CounterMode) String() string {
	if m == Atomic {
		return "atomic"
	}
	return "read-modify-write"
}

// CommentsField is the list field that holds thread comments.
const CommentsField = "comments"

// Collection describes a named collection and its server-managed fields.
type Collection struct {
	Name string
	// ReadOnly fields are dropped from client payloads on create and update.
	ReadOnly []string
	// Defaults are applied on create for fields the payload does not carry.
	Defaults map[string]any
	// CreatedAtField, when set, receives the creation time on create.
	CreatedAtField string
}

// Option configures a Repository.
type Option func(*settings)

type settings struct {
	mode CounterMode
	now  func() time.Time
}

// WithCounterMode selects the counter/list update strategy.
func WithCounterMode(mode CounterMode) Option {
	return func(s *settings) {
		s.mode = mode
	}
}

// WithClock overrides the time source used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// Repository stores values of T in one collection. T must round-trip through
// JSON and carry its id in an "id" field.
type Repository[T any] struct {
	store      docstore.Store
	collection Collection
	mode       CounterMode
	now        func() time.Time
}

// New creates a repository over the given store and collection.
func New[T any](store docstore.Store, collection Collection, opts ...Option) *Repository[T] {
	cfg := settings{mode: ReadModifyWrite, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	mode := cfg.mode
	if mode == Atomic {
		if _, ok := store.(docstore.AtomicStore); !ok {
			log.Printf("[repository] %s: store has no atomic updates, using %s", collection.Name, ReadModifyWrite)
			mode = ReadModifyWrite
		}
	}

	return &Repository[T]{
		store:      store,
		collection: collection,
		mode:       mode,
		now:        cfg.now,
	}
}

// Name returns the collection name.
func (r *Repository[T]) Name() string {
	return r.collection.Name
}

// Mode returns the effective counter mode.
func (r *Repository[T]) Mode() CounterMode {
	return r.mode
}

// Create stores doc under a new store-generated id and returns it. Any id
// carried by doc is ignored.
func (r *Repository[T]) Create(ctx context.Context, doc T) (T, error) {
	var zero T

	fields, err := r.clientFields(doc)
	if err != nil {
		return zero, err
	}
	for key, value := range r.collection.Defaults {
		if _, ok := fields[key]; !ok {
			fields[key] = value
		}
	}
	if r.collection.CreatedAtField != "" {
		fields[r.collection.CreatedAtField] = r.now().UTC().Format(time.RFC3339Nano)
	}

	stored, err := r.store.Insert(ctx, r.collection.Name, fields)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s document: %w", r.collection.Name, err)
	}
	return decode[T](stored)
}

// List returns every document in the collection in store order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	docs, err := r.store.List(ctx, r.collection.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.collection.Name, err)
	}

	result := make([]T, 0, len(docs))
	for _, d := range docs {
		value, err := decode[T](d)
		if err != nil {
			return nil, err
		}
		result = append(result, value)
	}
	return result, nil
}

// Get returns the document with the given id.
func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := r.store.Get(ctx, r.collection.Name, id)
	if err != nil {
		return zero, r.wrap("get", id, err)
	}
	return decode[T](doc)
}

// GetByField returns the first document whose field equals value. Uniqueness
// of the field is not enforced here.
func (r *Repository[T]) GetByField(ctx context.Context, field string, value any) (T, error) {
	var zero T
	doc, err := r.store.FindOne(ctx, r.collection.Name, field, value)
	if err != nil {
		return zero, r.wrap("find by "+field, fmt.Sprint(value), err)
	}
	return decode[T](doc)
}

// Update overlays patch on the stored document. Keys absent from patch keep
// their stored values, and a key present with a nil value clears the field.
// The id and read-only fields are never overwritten.
func (r *Repository[T]) Update(ctx context.Context, id string, patch docstore.Fields) (T, error) {
	var zero T

	fields := make(docstore.Fields, len(patch))
	for key, value := range patch {
		fields[key] = value
	}
	r.dropManaged(fields)

	stored, err := r.store.Merge(ctx, r.collection.Name, id, fields)
	if err != nil {
		return zero, r.wrap("update", id, err)
	}
	return decode[T](stored)
}

// Delete removes the document with the given id.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, r.collection.Name, id); err != nil {
		return r.wrap("delete", id, err)
	}
	return nil
}

// IncrementCounter adds one to an integer field and returns the new value.
// In ReadModifyWrite mode two concurrent calls may both observe the same
// starting value, and one increment is lost.
func (r *Repository[T]) IncrementCounter(ctx context.Context, id, field string) (int64, error) {
	if err := docstore.ValidateFieldName(field); err != nil {
		return 0, err
	}

	if r.mode == Atomic {
		value, err := r.store.(docstore.AtomicStore).Increment(ctx, r.collection.Name, id, field, 1)
		if err != nil {
			return 0, r.wrap("increment "+field, id, err)
		}
		return value, nil
	}

	doc, err := r.store.Get(ctx, r.collection.Name, id)
	if err != nil {
		return 0, r.wrap("increment "+field, id, err)
	}
	next := toInt64(doc.Fields[field]) + 1
	if _, err := r.store.Merge(ctx, r.collection.Name, id, docstore.Fields{field: next}); err != nil {
		return 0, r.wrap("increment "+field, id, err)
	}
	return next, nil
}

// AppendComment assigns the comment a fresh id and the current server time,
// appends it to the document's comment list and returns it.
func (r *Repository[T]) AppendComment(ctx context.Context, id string, comment types.Comment) (types.Comment, error) {
	comment.ID = uuid.NewString()
	comment.CreatedAt = r.now().UTC()
	if comment.Author == "" {
		comment.Author = types.DefaultCommentAuthor
	}

	entry, err := toFields(comment)
	if err != nil {
		return types.Comment{}, err
	}

	if r.mode == Atomic {
		if err := r.store.(docstore.AtomicStore).Append(ctx, r.collection.Name, id, CommentsField, entry); err != nil {
			return types.Comment{}, r.wrap("append comment", id, err)
		}
		return comment, nil
	}

	doc, err := r.store.Get(ctx, r.collection.Name, id)
	if err != nil {
		return types.Comment{}, r.wrap("append comment", id, err)
	}
	list, _ := doc.Fields[CommentsField].([]any)
	list = append(list, map[string]any(entry))
	if _, err := r.store.Merge(ctx, r.collection.Name, id, docstore.Fields{CommentsField: list}); err != nil {
		return types.Comment{}, r.wrap("append comment", id, err)
	}
	return comment, nil
}

// clientFields converts doc to store fields without the id and read-only keys.
func (r *Repository[T]) clientFields(doc T) (docstore.Fields, error) {
	fields, err := toFields(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s document: %w", r.collection.Name, err)
	}
	r.dropManaged(fields)
	return fields, nil
}

func (r *Repository[T]) dropManaged(fields docstore.Fields) {
	delete(fields, "id")
	for _, key := range r.collection.ReadOnly {
		delete(fields, key)
	}
}

func (r *Repository[T]) wrap(op, key string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%s %s %q: %w", op, r.collection.Name, key, ErrNotFound)
	}
	return fmt.Errorf("failed to %s %s %q: %w", op, r.collection.Name, key, err)
}

// ParsePatch decodes a JSON object into the fields an Update overlays. Only
// the keys present in data are returned.
func ParsePatch(data []byte) (docstore.Fields, error) {
	var fields docstore.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("patch must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("patch must be a JSON object, got null")
	}
	return fields, nil
}

func toFields(value any) (docstore.Fields, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var fields docstore.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = docstore.Fields{}
	}
	return fields, nil
}

func decode[T any](doc docstore.Document) (T, error) {
	var value T

	fields := make(docstore.Fields, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields["id"] = doc.ID

	data, err := json.Marshal(fields)
	if err != nil {
		return value, fmt.Errorf("failed to process document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("failed to unmarshal document %s into type %T: %w", doc.ID, value, err)
	}
	return value, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
