package llm

import (
	"fmt"
	"strings"

	"github.com/clarimed/clarimed/internal/faults"
)

// NewProvider creates a new AI backend based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "":
		// No provider configured - return nil (backend disabled)
		return nil, nil

	default:
		return nil, faults.New(faults.CodeConfiguration,
			fmt.Sprintf("unknown AI backend: %s (supported: openai, anthropic)", config.Provider))
	}
}
