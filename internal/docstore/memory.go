package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. Documents are copied on every read
// and write so callers never share maps with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	readDelay   time.Duration
}

type memoryCollection struct {
	order []string
	docs  map[string][]byte
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithReadDelay makes Get sleep after reading, which widens the window between
// a read and a dependent write. Used to exercise lost-update races in tests.
func WithReadDelay(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.readDelay = d
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{collections: make(map[string]*memoryCollection)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string][]byte)}
		s.collections[name] = c
	}
	return c
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, collection string, fields Fields) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	data, err := json.Marshal(withoutID(fields))
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()

	s.mu.Lock()
	c := s.collection(collection)
	c.docs[id] = data
	c.order = append(c.order, id)
	s.mu.Unlock()

	return s.decode(id, data)
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	var data []byte
	if c, ok := s.collections[collection]; ok {
		data = c.docs[id]
	}
	s.mu.RUnlock()

	if s.readDelay > 0 {
		time.Sleep(s.readDelay)
	}

	if data == nil {
		return Document{}, ErrNotFound
	}
	return s.decode(id, data)
}

// List implements Store. Documents come back in insertion order.
func (s *MemoryStore) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []Document{}, nil
	}

	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		doc, err := s.decode(id, c.docs[id])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindOne implements Store.
func (s *MemoryStore) FindOne(ctx context.Context, collection, field string, value any) (Document, error) {
	if err := ValidateFieldName(field); err != nil {
		return Document{}, err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode lookup value: %w", err)
	}

	docs, err := s.List(ctx, collection)
	if err != nil {
		return Document{}, err
	}
	for _, doc := range docs {
		got, ok := doc.Fields[field]
		if !ok {
			continue
		}
		encoded, err := json.Marshal(got)
		if err != nil {
			continue
		}
		if bytes.Equal(encoded, want) {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

// Merge implements Store.
func (s *MemoryStore) Merge(ctx context.Context, collection, id string, fields Fields) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok || c.docs[id] == nil {
		return Document{}, ErrNotFound
	}

	current, err := decodeFields(c.docs[id])
	if err != nil {
		return Document{}, err
	}
	for k, v := range withoutID(fields) {
		current[k] = v
	}

	data, err := json.Marshal(current)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document: %w", err)
	}
	c.docs[id] = data
	return s.decode(id, data)
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok || c.docs[id] == nil {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Increment implements AtomicStore.
func (s *MemoryStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	if err := ValidateFieldName(field); err != nil {
		return 0, err
	}
	var next int64
	err := s.update(ctx, collection, id, func(fields Fields) {
		next = toInt64(fields[field]) + delta
		fields[field] = next
	})
	return next, err
}

// Append implements AtomicStore.
func (s *MemoryStore) Append(ctx context.Context, collection, id, field string, value any) error {
	if err := ValidateFieldName(field); err != nil {
		return err
	}
	return s.update(ctx, collection, id, func(fields Fields) {
		list, _ := fields[field].([]any)
		fields[field] = append(list, value)
	})
}

// update applies fn to the stored fields while holding the write lock.
func (s *MemoryStore) update(ctx context.Context, collection, id string, fn func(Fields)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok || c.docs[id] == nil {
		return ErrNotFound
	}
	fields, err := decodeFields(c.docs[id])
	if err != nil {
		return err
	}
	fn(fields)

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	c.docs[id] = data
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) decode(id string, data []byte) (Document, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}
