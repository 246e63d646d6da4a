package docstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("insert assigns id and ignores supplied id", func(t *testing.T) {
		s := open(t)
		doc, err := s.Insert(ctx, "projects", Fields{"id": "client-id", "slug": "x", "title": "X"})
		require.NoError(t, err)
		assert.NotEmpty(t, doc.ID)
		assert.NotEqual(t, "client-id", doc.ID)
		assert.NotContains(t, doc.Fields, "id")
		assert.Equal(t, "x", doc.Fields["slug"])
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, "projects", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list returns all documents", func(t *testing.T) {
		s := open(t)
		for _, slug := range []string{"a", "b", "c"} {
			_, err := s.Insert(ctx, "writings", Fields{"slug": slug})
			require.NoError(t, err)
		}
		_, err := s.Insert(ctx, "other", Fields{"slug": "z"})
		require.NoError(t, err)

		docs, err := s.List(ctx, "writings")
		require.NoError(t, err)
		assert.Len(t, docs, 3)

		empty, err := s.List(ctx, "nothing-here")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("find one by field", func(t *testing.T) {
		s := open(t)
		inserted, err := s.Insert(ctx, "projects", Fields{"slug": "wanted", "title": "W"})
		require.NoError(t, err)
		_, err = s.Insert(ctx, "projects", Fields{"slug": "other"})
		require.NoError(t, err)

		found, err := s.FindOne(ctx, "projects", "slug", "wanted")
		require.NoError(t, err)
		assert.Equal(t, inserted.ID, found.ID)

		_, err = s.FindOne(ctx, "projects", "slug", "absent")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.FindOne(ctx, "projects", "slug'; DROP", "x")
		assert.Error(t, err)
	})

	t.Run("merge overlays and preserves", func(t *testing.T) {
		s := open(t)
		doc, err := s.Insert(ctx, "systems", Fields{"name": "Redis", "usage": "cache", "logo": "r.png"})
		require.NoError(t, err)

		merged, err := s.Merge(ctx, "systems", doc.ID, Fields{"usage": "queues", "id": "ignored"})
		require.NoError(t, err)
		assert.Equal(t, doc.ID, merged.ID)
		assert.Equal(t, "queues", merged.Fields["usage"])
		assert.Equal(t, "Redis", merged.Fields["name"])
		assert.Equal(t, "r.png", merged.Fields["logo"])

		_, err = s.Merge(ctx, "systems", "missing", Fields{"usage": "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("merge with nil clears the field", func(t *testing.T) {
		s := open(t)
		doc, err := s.Insert(ctx, "projects", Fields{"title": "P", "hld": "design", "featured": true})
		require.NoError(t, err)

		merged, err := s.Merge(ctx, "projects", doc.ID, Fields{"hld": nil})
		require.NoError(t, err)
		assert.Nil(t, merged.Fields["hld"])
		assert.Equal(t, true, merged.Fields["featured"])
		assert.Equal(t, "P", merged.Fields["title"])
	})

	t.Run("delete then get is not found", func(t *testing.T) {
		s := open(t)
		doc, err := s.Insert(ctx, "vault", Fields{"title": "T"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, "vault", doc.ID))
		_, err = s.Get(ctx, "vault", doc.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "vault", doc.ID), ErrNotFound)
	})

	t.Run("atomic increment and append", func(t *testing.T) {
		s := open(t)
		atomic, ok := s.(AtomicStore)
		require.True(t, ok, "backend should implement AtomicStore")

		doc, err := s.Insert(ctx, "arena", Fields{"title": "T"})
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := atomic.Increment(ctx, "arena", doc.ID, "likes", 1)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, "arena", doc.ID)
		require.NoError(t, err)
		assert.EqualValues(t, n, got.Fields["likes"])

		require.NoError(t, atomic.Append(ctx, "arena", doc.ID, "comments", map[string]any{"content": "first"}))
		require.NoError(t, atomic.Append(ctx, "arena", doc.ID, "comments", map[string]any{"content": "second"}))
		got, err = s.Get(ctx, "arena", doc.ID)
		require.NoError(t, err)
		comments, ok := got.Fields["comments"].([]any)
		require.True(t, ok)
		require.Len(t, comments, 2)
		assert.Equal(t, "second", comments[1].(map[string]any)["content"])

		_, err = atomic.Increment(ctx, "arena", "missing", "likes", 1)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, atomic.Append(ctx, "arena", "missing", "comments", "x"), ErrNotFound)
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(_ *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "documents.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	doc, err := s.Insert(ctx, "projects", Fields{"techStack": []any{"Go"}})
	require.NoError(t, err)

	doc.Fields["techStack"] = []any{"mutated"}
	got, err := s.Get(ctx, "projects", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []any{"Go"}, got.Fields["techStack"])
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mongo", "")
	assert.Error(t, err)
}

func TestValidateFieldName(t *testing.T) {
	assert.NoError(t, ValidateFieldName("slug"))
	assert.NoError(t, ValidateFieldName("publishedAt"))
	assert.NoError(t, ValidateFieldName("_private1"))
	assert.Error(t, ValidateFieldName(""))
	assert.Error(t, ValidateFieldName("1slug"))
	assert.Error(t, ValidateFieldName("a.b"))
	assert.Error(t, ValidateFieldName("a' OR 1=1"))
}
