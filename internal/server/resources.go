package server

import (
	"net/http"

	"github.com/jonathan/portfolio-api/internal/repository"
)

// validatable is implemented by every stored content type.
type validatable interface {
	Validate() error
}

// resource serves the standard routes of one collection.
type resource[T validatable] struct {
	s        *Server
	repo     *repository.Repository[T]
	singular string
}

func newResource[T validatable](s *Server, repo *repository.Repository[T], singular string) *resource[T] {
	return &resource[T]{s: s, repo: repo, singular: singular}
}

func (res *resource[T]) list(w http.ResponseWriter, r *http.Request) {
	items, err := res.repo.List(r.Context())
	if err != nil {
		res.s.fail(w, r, err)
		return
	}
	res.s.jsonResponse(w, http.StatusOK, items)
}

func (res *resource[T]) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := res.repo.Get(r.Context(), id)
	if err != nil {
		res.s.fail(w, r, notFound(err, res.singular, id))
		return
	}
	res.s.jsonResponse(w, http.StatusOK, item)
}

func (res *resource[T]) getBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	item, err := res.repo.GetByField(r.Context(), "slug", slug)
	if err != nil {
		res.s.fail(w, r, notFound(err, res.singular, slug))
		return
	}
	res.s.jsonResponse(w, http.StatusOK, item)
}

func (res *resource[T]) create(w http.ResponseWriter, r *http.Request) {
	var doc T
	if err := decodeRequest(w, r, res.repo.Name(), &doc); err != nil {
		res.s.fail(w, r, err)
		return
	}

	created, err := res.repo.Create(r.Context(), doc)
	if err != nil {
		res.s.fail(w, r, err)
		return
	}
	res.s.jsonResponse(w, http.StatusCreated, created)
}

func (res *resource[T]) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// The body is validated as a whole document, but only the keys it
	// carries are written.
	var doc T
	body, err := decodeRequestBody(w, r, res.repo.Name(), &doc)
	if err != nil {
		res.s.fail(w, r, err)
		return
	}
	patch, err := repository.ParsePatch(body)
	if err != nil {
		res.s.fail(w, r, &ErrValidation{Field: "body", Message: "Invalid request body"})
		return
	}

	updated, err := res.repo.Update(r.Context(), id, patch)
	if err != nil {
		res.s.fail(w, r, notFound(err, res.singular, id))
		return
	}
	res.s.jsonResponse(w, http.StatusOK, updated)
}

func (res *resource[T]) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := res.repo.Delete(r.Context(), id); err != nil {
		res.s.fail(w, r, notFound(err, res.singular, id))
		return
	}
	res.s.jsonResponse(w, http.StatusOK, map[string]string{"message": res.singular + " deleted successfully"})
}
