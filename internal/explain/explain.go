// Package explain generates persona-specific project explanations with an
// ordered chain of generation models.
package explain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonathan/portfolio-api/internal/llm"
	"github.com/jonathan/portfolio-api/internal/prompts"
	"github.com/jonathan/portfolio-api/internal/types"
)

// Persona selects the prompt template and the project fields it uses.
type Persona string

// Known personas.
const (
	Recruiter Persona = "recruiter"
	Engineer  Persona = "engineer"
	Architect Persona = "architect"
)

const (
	// NotAvailable stands in for missing project fields so every prompt keeps
	// the same shape.
	NotAvailable = "not available"

	// MissingKeyMessage is returned when no model is configured.
	MissingKeyMessage = "Gemini API Key is missing. Please configure it in the backend."

	diagnosticPrefix = "Error generating explanation (after fallback): "

	promptFile = "explain.json"
)

// ParsePersona maps a request value to a Persona. Unknown values, including
// the empty string, select Recruiter without an error.
func ParsePersona(s string) Persona {
	switch p := Persona(strings.ToLower(strings.TrimSpace(s))); p {
	case Recruiter, Engineer, Architect:
		return p
	default:
		return Recruiter
	}
}

// Provider is one entry in the model chain.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelProvider binds an llm.Client to one model tier.
type ModelProvider struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewModelProvider creates a provider for tier.
func NewModelProvider(client llm.Client, tier llm.ModelTier) *ModelProvider {
	return &ModelProvider{client: client, tier: tier}
}

// Name returns the model name behind the tier.
func (p *ModelProvider) Name() string {
	return p.client.GetModel(p.tier)
}

// Generate implements Provider.
func (p *ModelProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.client.GenerateContent(ctx, prompt, p.tier)
}

// ProvidersFromChain returns one provider per tier of cfg.Chain, in order.
func ProvidersFromChain(client llm.Client, cfg *llm.Config) []Provider {
	providers := make([]Provider, 0, len(cfg.Chain))
	for _, tier := range cfg.Chain {
		providers = append(providers, NewModelProvider(client, tier))
	}
	return providers
}

// Generator turns a project and persona into explanation text.
type Generator struct {
	providers []Provider
	timeout   time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout bounds each provider attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

// NewGenerator creates a generator that tries providers in order.
func NewGenerator(providers []Provider, opts ...Option) *Generator {
	g := &Generator{
		providers: providers,
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Explain returns generated text, or a diagnostic string when every provider
// fails. It never returns an error: generation failure is content, not a
// request failure.
func (g *Generator) Explain(ctx context.Context, project types.Project, persona string) string {
	if len(g.providers) == 0 {
		return MissingKeyMessage
	}

	prompt, err := BuildPrompt(project, ParsePersona(persona))
	if err != nil {
		log.Printf("[explain] failed to build prompt for %q: %v", project.Slug, err)
		return diagnosticPrefix + err.Error()
	}

	var lastErr error
	for i, provider := range g.providers {
		text, err := g.attempt(ctx, provider, prompt)
		if err == nil {
			return text
		}
		lastErr = err
		if i < len(g.providers)-1 {
			log.Printf("[explain] %s failed: %v; falling back to %s", provider.Name(), err, g.providers[i+1].Name())
		} else {
			log.Printf("[explain] %s failed: %v; no providers left", provider.Name(), err)
		}
	}
	return diagnosticPrefix + lastErr.Error()
}

func (g *Generator) attempt(ctx context.Context, provider Provider, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := provider.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%s timed out after %s: %w", provider.Name(), g.timeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s returned an empty response", provider.Name())
	}
	return text, nil
}

// BuildPrompt renders the persona's template for project.
func BuildPrompt(project types.Project, persona Persona) (string, error) {
	return prompts.Render(promptFile, string(persona), promptFields(project))
}

func promptFields(p types.Project) map[string]string {
	techStack := strings.Join(p.TechStack, ", ")
	return map[string]string{
		"Title":                 orNotAvailable(p.Title),
		"OneLiner":              orNotAvailable(p.OneLiner),
		"TechStack":             orNotAvailable(techStack),
		"Overview":              orNotAvailable(p.Overview),
		"HLD":                   optional(p.HLD),
		"LLD":                   optional(p.LLD),
		"FailurePoints":         optional(p.FailurePoints),
		"ArchitectureDecisions": optional(p.ArchitectureDecisions),
	}
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

func optional(s *string) string {
	if s == nil {
		return NotAvailable
	}
	return orNotAvailable(*s)
}
