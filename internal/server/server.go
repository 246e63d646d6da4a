package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/notify"
	"github.com/jonathan/portfolio-api/internal/repository"
	"github.com/jonathan/portfolio-api/internal/schemas"
	"github.com/jonathan/portfolio-api/internal/server/middleware"
	"github.com/jonathan/portfolio-api/internal/server/ratelimit"
	"github.com/jonathan/portfolio-api/internal/types"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Explainer produces explanation text for a project. Failures are reported
// inside the returned text.
type Explainer interface {
	Explain(ctx context.Context, project types.Project, persona string) string
}

// Dispatcher queues notifications without blocking the caller.
type Dispatcher interface {
	Dispatch(n notify.Notification) bool
}

// TokenIssuer mints bearer tokens for the admin login.
type TokenIssuer interface {
	Issue(subject, email string) (string, time.Time, error)
}

// Revoker invalidates a subject's outstanding tokens.
type Revoker interface {
	Revoke(ctx context.Context, subject string, at time.Time) error
}

// Authenticator checks admin login credentials.
type Authenticator interface {
	Authenticate(admin config.AdminCredentials, email, password string) bool
}

// Deps are the collaborators the server is built from. Store, Verifier and
// Limiter are required.
type Deps struct {
	Store       docstore.Store
	Verifier    middleware.Verifier
	Limiter     *ratelimit.Limiter
	Explainer   Explainer
	Dispatcher  Dispatcher
	Issuer      TokenIssuer
	Revocations Revoker
	Passwords   Authenticator

	// Closers run after the HTTP server stops, in order.
	Closers []func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         *config.ServerConfig
	store       docstore.Store
	repos       *repository.Set
	limiter     *ratelimit.Limiter
	explainer   Explainer
	dispatcher  Dispatcher
	auth        *AuthHandler
	requireAuth func(http.Handler) http.Handler
	closers     []func(ctx context.Context) error
}

// New creates a new server instance
func New(cfg *config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Verifier == nil || deps.Limiter == nil {
		return nil, fmt.Errorf("server requires a store, a verifier and a rate limiter")
	}

	mode := repository.ReadModifyWrite
	if cfg.AtomicEngagement {
		mode = repository.Atomic
	}

	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		repos:       repository.NewSet(deps.Store, repository.WithCounterMode(mode)),
		limiter:     deps.Limiter,
		explainer:   deps.Explainer,
		dispatcher:  deps.Dispatcher,
		requireAuth: middleware.AuthMiddleware(deps.Verifier),
		closers:     deps.Closers,
	}
	s.auth = NewAuthHandler(cfg.Admin, deps.Passwords, deps.Issuer, deps.Revocations)
	log.Printf("[server] engagement updates use %s mode", s.repos.Arena.Mode())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.ExplainTimeout*2 + 30*time.Second, // explain may try two models
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.withLogging(s.withRateLimit(s.routes())))
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	p := s.cfg.APIPrefix

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Projects
	projects := newResource(s, s.repos.Projects, "Project")
	s.collection(mux, "GET", p+"/projects", projects.list)
	s.collection(mux, "POST", p+"/projects", s.authed(projects.create))
	mux.HandleFunc("GET "+p+"/projects/slug/{slug}", projects.getBySlug)
	mux.HandleFunc("POST "+p+"/projects/slug/{slug}/explain", s.handleExplain)
	mux.HandleFunc("GET "+p+"/projects/{id}", projects.get)
	mux.HandleFunc("PUT "+p+"/projects/{id}", s.authed(projects.update))
	mux.HandleFunc("DELETE "+p+"/projects/{id}", s.authed(projects.delete))

	// Writings are addressed by slug; the id form lives under /id/.
	writings := newResource(s, s.repos.Writings, "Writing")
	s.collection(mux, "GET", p+"/writings", writings.list)
	s.collection(mux, "POST", p+"/writings", s.authed(writings.create))
	mux.HandleFunc("GET "+p+"/writings/id/{id}", writings.get)
	mux.HandleFunc("GET "+p+"/writings/{slug}", writings.getBySlug)
	mux.HandleFunc("PUT "+p+"/writings/{id}", s.authed(writings.update))
	mux.HandleFunc("DELETE "+p+"/writings/{id}", s.authed(writings.delete))

	crud(s, mux, p+"/systems", newResource(s, s.repos.Systems, "System"))
	crud(s, mux, p+"/vault", newResource(s, s.repos.Vault, "Vault entry"))

	// Arena: thread CRUD is authenticated, engagement is public.
	crud(s, mux, p+"/arena", newResource(s, s.repos.Arena, "Thread"))
	mux.HandleFunc("POST "+p+"/arena/{id}/like", s.handleLike)
	mux.HandleFunc("POST "+p+"/arena/{id}/dislike", s.handleDislike)
	mux.HandleFunc("POST "+p+"/arena/{id}/comment", s.handleComment)

	// Messages: public create, authenticated inbox.
	messages := newResource(s, s.repos.Messages, "Message")
	s.collection(mux, "POST", p+"/messages", s.handleCreateMessage)
	s.collection(mux, "GET", p+"/messages", s.authed(messages.list))
	mux.HandleFunc("GET "+p+"/messages/{id}", s.authed(messages.get))
	mux.HandleFunc("PUT "+p+"/messages/{id}", s.authed(messages.update))
	mux.HandleFunc("DELETE "+p+"/messages/{id}", s.authed(messages.delete))

	mux.HandleFunc("POST "+p+"/auth/login", s.auth.Login)
	mux.HandleFunc("POST "+p+"/auth/revoke", s.authed(s.auth.Revoke))

	return mux
}

// collection registers h for both "path" and "path/".
func (s *Server) collection(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(method+" "+path+"/{$}", h)
	mux.HandleFunc(method+" "+path, h)
}

// crud registers the standard routes for a collection addressed by id.
func crud[T validatable](s *Server, mux *http.ServeMux, path string, res *resource[T]) {
	s.collection(mux, "GET", path, res.list)
	s.collection(mux, "POST", path, s.authed(res.create))
	mux.HandleFunc("GET "+path+"/{id}", res.get)
	mux.HandleFunc("PUT "+path+"/{id}", s.authed(res.update))
	mux.HandleFunc("DELETE "+path+"/{id}", s.authed(res.delete))
}

func (s *Server) authed(h http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(h).ServeHTTP
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is done, then shuts down gracefully: the HTTP server
// first, then the rate limiter, then every closer.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	return s.Shutdown()
}

// Shutdown stops the HTTP server and releases every dependency.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}

	// Stop rate limiter cleanup goroutine
	s.limiter.Stop()

	for _, closeFn := range s.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}

	log.Println("Server stopped")
	return errors.Join(errs...)
}

// withCORS allows the configured origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.cfg.CORSOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(s.cfg.CORSOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := ratelimit.ClientID(r, s.cfg.TrustProxyHeaders)

		allowed, info := s.limiter.Allow(r.Context(), clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleRoot returns the API banner
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Portfolio System API is running"})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to a status and writes it. Internal errors are logged and
// replaced by a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[server] %s %s failed: %v", r.Method, r.URL.Path, err)
		s.errorResponse(w, status, "Internal server error")
		return
	}
	var schemaErr *schemas.ValidationError
	if errors.As(err, &schemaErr) {
		s.errorResponse(w, status, "validation failed: "+schemaErr.Summary())
		return
	}
	s.errorResponse(w, status, err.Error())
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
