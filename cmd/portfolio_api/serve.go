package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/portfolio-api/internal/auth"
	"github.com/jonathan/portfolio-api/internal/config"
	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/explain"
	"github.com/jonathan/portfolio-api/internal/llm"
	"github.com/jonathan/portfolio-api/internal/notify"
	"github.com/jonathan/portfolio-api/internal/server"
	"github.com/jonathan/portfolio-api/internal/server/ratelimit"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the portfolio content endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8000, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	passwords, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	store, err := docstore.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
	}
	log.Printf("[docstore] using %s store", cfg.StoreDriver)

	var closers []func(context.Context) error

	window, err := rateLimitWindow(ctx, cfg, &closers)
	if err != nil {
		_ = store.Close()
		return err
	}
	limiter := ratelimit.NewLimiter(ratelimit.LoadConfig(cfg.APIPrefix), window)

	revocations := auth.NewStoreRevocations(store)
	verifier, err := auth.NewJWTVerifier(jwtCfg, revocations)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create token verifier: %w", err)
	}
	deps := server.Deps{
		Store:       store,
		Verifier:    verifier,
		Limiter:     limiter,
		Revocations: revocations,
		Passwords:   passwords,
	}
	if issuer, err := auth.NewTokenIssuer(jwtCfg); err == nil {
		deps.Issuer = issuer
	} else {
		log.Printf("[auth] admin login disabled: %v", err)
	}

	explainer, err := newExplainer(ctx, cfg, &closers)
	if err != nil {
		_ = store.Close()
		return err
	}
	deps.Explainer = explainer

	dispatcher := notify.NewDispatcher(notify.New(cfg.Mail), cfg.Notify)
	deps.Dispatcher = dispatcher
	// The dispatcher drains first so queued mail is not cut off by the other closers.
	closers = append([]func(context.Context) error{dispatcher.Close}, closers...)
	deps.Closers = closers

	srv, err := server.New(cfg, deps)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// rateLimitWindow returns a Redis-backed window when REDIS_URL is set and nil
// otherwise, which makes the limiter use its in-process window.
func rateLimitWindow(ctx context.Context, cfg *config.ServerConfig, closers *[]func(context.Context) error) (ratelimit.FixedWindow, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	client, err := ratelimit.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, func(context.Context) error { return client.Close() })
	log.Printf("[rate-limit] using shared redis window")
	return ratelimit.NewRedisWindow(client, ""), nil
}

// newExplainer builds the model fallback chain. Without an API key the
// generator has no providers and answers with the missing-key message.
func newExplainer(ctx context.Context, cfg *config.ServerConfig, closers *[]func(context.Context) error) (*explain.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		log.Printf("[explain] GEMINI_API_KEY not set, explanations disabled")
		return explain.NewGenerator(nil), nil
	}

	chain := llm.ConfigFromModels(cfg.GeminiModels)
	client, err := llm.NewClient(ctx, chain, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	*closers = append(*closers, func(context.Context) error { return client.Close() })

	return explain.NewGenerator(
		explain.ProvidersFromChain(client, chain),
		explain.WithTimeout(cfg.ExplainTimeout),
	), nil
}
