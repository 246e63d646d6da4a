package repository

import (
	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/types"
)

// Collections served by the API.
var (
	Projects = Collection{
		Name:     "projects",
		Defaults: map[string]any{"featured": false, "status": "published"},
	}
	Writings = Collection{Name: "writings"}
	Systems  = Collection{Name: "systems"}
	Vault    = Collection{Name: "vault"}
	Arena    = Collection{
		Name:     "arena",
		ReadOnly: []string{"likes", "dislikes", CommentsField},
		Defaults: map[string]any{"likes": 0, "dislikes": 0, CommentsField: []any{}},
	}
	Messages = Collection{
		Name:           "messages",
		ReadOnly:       []string{"createdAt"},
		Defaults:       map[string]any{"read": false},
		CreatedAtField: "createdAt",
	}
)

// Set holds one repository per collection, all over the same store.
type Set struct {
	Projects *Repository[types.Project]
	Writings *Repository[types.Writing]
	Systems  *Repository[types.System]
	Vault    *Repository[types.VaultEntry]
	Arena    *Repository[types.ArenaThread]
	Messages *Repository[types.Message]
}

// NewSet creates the repositories for every collection. Options apply to all
// of them.
func NewSet(store docstore.Store, opts ...Option) *Set {
	return &Set{
		Projects: New[types.Project](store, Projects, opts...),
		Writings: New[types.Writing](store, Writings, opts...),
		Systems:  New[types.System](store, Systems, opts...),
		Vault:    New[types.VaultEntry](store, Vault, opts...),
		Arena:    New[types.ArenaThread](store, Arena, opts...),
		Messages: New[types.Message](store, Messages, opts...),
	}
}
