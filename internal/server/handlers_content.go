package server

import (
	"log"
	"net/http"

	"github.com/jonathan/portfolio-api/internal/explain"
	"github.com/jonathan/portfolio-api/internal/notify"
	"github.com/jonathan/portfolio-api/internal/schemas"
	"github.com/jonathan/portfolio-api/internal/types"
)

// ---------------------------------------------------------------------
// Arena engagement (public)
// ---------------------------------------------------------------------

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.increment(w, r, "likes")
}

func (s *Server) handleDislike(w http.ResponseWriter, r *http.Request) {
	s.increment(w, r, "dislikes")
}

func (s *Server) increment(w http.ResponseWriter, r *http.Request, field string) {
	id := r.PathValue("id")
	value, err := s.repos.Arena.IncrementCounter(r.Context(), id, field)
	if err != nil {
		s.fail(w, r, notFound(err, "Thread", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"id": id, field: value})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req types.CreateCommentRequest
	if err := decodeRequest(w, r, schemas.Comment, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	comment, err := s.repos.Arena.AppendComment(r.Context(), id, types.Comment{
		Author:  req.Author,
		Content: req.Content,
	})
	if err != nil {
		s.fail(w, r, notFound(err, "Thread", id))
		return
	}
	s.jsonResponse(w, http.StatusCreated, comment)
}

// ---------------------------------------------------------------------
// Contact messages
// ---------------------------------------------------------------------

// handleCreateMessage stores the message, then queues the notification. The
// notification outcome never changes the response.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if err := decodeRequest(w, r, s.repos.Messages.Name(), &msg); err != nil {
		s.fail(w, r, err)
		return
	}
	msg.Read = false

	created, err := s.repos.Messages.Create(r.Context(), msg)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.notifyMessage(created)
	s.jsonResponse(w, http.StatusCreated, created)
}

func (s *Server) notifyMessage(m types.Message) {
	if s.dispatcher == nil {
		return
	}
	n, err := notify.ForMessage(m)
	if err != nil {
		log.Printf("[notify] message %s: %v", m.ID, err)
		return
	}
	s.dispatcher.Dispatch(n)
}

// ---------------------------------------------------------------------
// Explanations
// ---------------------------------------------------------------------

// handleExplain always answers 200 once the project exists; generation
// failures come back as the explanation text.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")

	var req types.ExplainRequest
	if err := decodeRequest(w, r, schemas.Explain, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	project, err := s.repos.Projects.GetByField(r.Context(), "slug", slug)
	if err != nil {
		s.fail(w, r, notFound(err, "Project", slug))
		return
	}

	text := explain.MissingKeyMessage
	if s.explainer != nil {
		text = s.explainer.Explain(r.Context(), project, req.Persona)
	}
	s.jsonResponse(w, http.StatusOK, types.ExplainResponse{Explanation: text})
}
