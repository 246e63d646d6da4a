// Package llm provides centralized LLM configuration and client abstractions.
package llm

import "fmt"

// ModelTier names a position in the model chain.
type ModelTier string

const (
	// TierPrimary is tried first.
	TierPrimary ModelTier = "primary"
	// TierFallback is tried when the primary model fails.
	TierFallback ModelTier = "fallback"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider.
const ProviderGemini Provider = "gemini"

// Config holds the model configuration for the application. Chain lists the
// tiers in the order they are tried.
type Config struct {
	Provider   Provider
	Models     map[ModelTier]string
	Chain      []ModelTier
	Generation Generation
}

// Generation holds the sampling settings applied to every model in the chain.
// Zero values leave the provider default in place.
type Generation struct {
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	// Instruction is sent as the system prompt.
	Instruction string
}

// DefaultGeneration suits short explanatory prose: a few paragraphs, mildly
// varied wording, no markdown.
func DefaultGeneration() Generation {
	return Generation{
		Temperature:     0.7,
		TopP:            0.95,
		MaxOutputTokens: 1024,
		Instruction:     "You write short explanations of software projects for a portfolio site. Answer in plain paragraphs without markdown headings, bullet lists, or code blocks.",
	}
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierPrimary:  "gemini-2.0-flash",
			TierFallback: "gemini-1.5-flash",
		},
		Chain:      []ModelTier{TierPrimary, TierFallback},
		Generation: DefaultGeneration(),
	}
}

// ConfigFromModels builds a Gemini configuration whose chain follows models
// in order. Models after the second get tiers "fallback-2", "fallback-3", ...
func ConfigFromModels(models []string) *Config {
	cfg := &Config{
		Provider:   ProviderGemini,
		Models:     make(map[ModelTier]string, len(models)),
		Generation: DefaultGeneration(),
	}
	for i, model := range models {
		var tier ModelTier
		switch i {
		case 0:
			tier = TierPrimary
		case 1:
			tier = TierFallback
		default:
			tier = ModelTier(fmt.Sprintf("%s-%d", TierFallback, i))
		}
		cfg.Models[tier] = model
		cfg.Chain = append(cfg.Chain, tier)
	}
	return cfg
}

// GetModel returns the model name for a given tier, or "" when the tier is
// not configured. There is no implicit substitution; the chain decides what
// runs next.
func (c *Config) GetModel(tier ModelTier) string {
	return c.Models[tier]
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider:   c.Provider,
		Models:     make(map[ModelTier]string),
		Chain:      append([]ModelTier(nil), c.Chain...),
		Generation: c.Generation,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	if _, ok := newConfig.Models[tier]; !ok {
		newConfig.Chain = append(newConfig.Chain, tier)
	}
	newConfig.Models[tier] = model
	return newConfig
}
