package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/repository"
)

func TestLoadFixtures(t *testing.T) {
	fixtures, err := loadFixtures(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)

	assert.Len(t, fixtures["projects"], 2)
	assert.Len(t, fixtures["writings"], 1)
	assert.Len(t, fixtures["arena"], 1)
	assert.Equal(t, "portfolio-api", fixtures["projects"][0]["slug"])
}

func TestLoadFixtures_Errors(t *testing.T) {
	_, err := loadFixtures(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("projects: [unterminated"), 0o644))
	_, err = loadFixtures(path)
	assert.Error(t, err)
}

func TestSeed_CreatesEveryCollection(t *testing.T) {
	fixtures, err := loadFixtures(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)

	store := docstore.NewMemoryStore()
	repos := repository.NewSet(store)
	var out bytes.Buffer

	counts, err := seed(context.Background(), &out, repos, fixtures)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"projects": 2,
		"writings": 1,
		"systems":  1,
		"vault":    1,
		"arena":    1,
	}, counts)
	assert.Contains(t, out.String(), "projects: 2 created")

	project, err := repos.Projects.GetByField(context.Background(), "slug", "feed-reader")
	require.NoError(t, err)
	assert.True(t, project.Featured)
	assert.Equal(t, "published", project.Status)

	thread, err := repos.Arena.GetByField(context.Background(), "title", "Monorepos")
	require.NoError(t, err)
	assert.Equal(t, int64(0), thread.Likes)
	assert.NotNil(t, thread.Comments)
}

func TestSeed_RejectsInvalidFixturesBeforeWriting(t *testing.T) {
	tests := []struct {
		name     string
		fixtures Fixtures
	}{
		{
			name:     "unknown collection",
			fixtures: Fixtures{"users": {{"name": "x"}}},
		},
		{
			name: "schema violation",
			fixtures: Fixtures{
				"vault": {{"title": "Note", "category": "ops", "tags": []any{"a"}, "content": "c"}},
				"systems": {{"name": "Redis"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := docstore.NewMemoryStore()
			var out bytes.Buffer

			_, err := seed(context.Background(), &out, repository.NewSet(store), tt.fixtures)
			require.Error(t, err)

			for _, name := range []string{"vault", "systems"} {
				docs, err := store.List(context.Background(), name)
				require.NoError(t, err)
				assert.Empty(t, docs)
			}
		})
	}
}
