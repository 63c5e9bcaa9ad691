// internal/llm/factory/factory.go
package factory

import (
	"fmt"

	"github.com/quantumtrader/quantumtrader/internal/config"
	"github.com/quantumtrader/quantumtrader/internal/llm"
	"github.com/quantumtrader/quantumtrader/internal/llm/claude"
	"github.com/quantumtrader/quantumtrader/internal/llm/gemini"
	"github.com/quantumtrader/quantumtrader/internal/llm/ollama"
	"github.com/quantumtrader/quantumtrader/internal/llm/openai"
)

// defaultOrder is the vendor priority used when none is configured.
var defaultOrder = []string{"claude", "openai", "gemini", "ollama"}

// New creates a single LLM provider by name.
func New(name string, cfg config.AIConfig) (llm.Provider, error) {
	switch name {
	case "claude":
		return claude.New(cfg.Claude.APIKey, cfg.Claude.Model)
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	case "gemini":
		return gemini.New(cfg.Gemini.APIKey, cfg.Gemini.Model)
	case "ollama":
		return ollama.New(cfg.Ollama.Endpoint, cfg.Ollama.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", name)
	}
}

// enabled reports whether a vendor has the credentials it needs.
func enabled(name string, cfg config.AIConfig) bool {
	switch name {
	case "claude":
		return cfg.Claude.APIKey != ""
	case "openai":
		return cfg.OpenAI.APIKey != ""
	case "gemini":
		return cfg.Gemini.APIKey != ""
	case "ollama":
		return cfg.Ollama.Endpoint != ""
	default:
		return false
	}
}

// Providers builds all configured vendors in priority order. Vendors
// without credentials are skipped; an empty result is valid and leaves
// the rule-based fallback as the only decision source.
func Providers(cfg config.AIConfig) ([]llm.Provider, error) {
	order := cfg.Providers
	if len(order) == 0 {
		order = defaultOrder
	}

	var providers []llm.Provider
	for _, name := range order {
		if name == "rulebased" {
			continue // not an LLM vendor; always appended by the advisor layer
		}
		if !enabled(name, cfg) {
			continue
		}
		p, err := New(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("building provider %s: %w", name, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}
