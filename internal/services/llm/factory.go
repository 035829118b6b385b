package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
)

// NewLLMService creates the configured LLM service implementation. The
// concurrency semaphore and retry budget are built once here so every call
// through the returned service shares them.
func NewLLMService(cfg *common.Config, logger arbor.ILogger) (interfaces.LLMService, error) {
	provider := cfg.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderClaude
	}

	sem := NewSemaphore(cfg.LLM.MaxConcurrent)

	retry := NewDefaultRetryConfig()
	if cfg.LLM.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.LLM.MaxAttempts
	}

	logger.Info().
		Str("provider", string(provider)).
		Int("max_concurrent", sem.Cap()).
		Int("max_attempts", retry.MaxAttempts).
		Msg("Initializing LLM service")

	switch provider {
	case common.LLMProviderClaude:
		return NewClaudeService(cfg, sem, retry, logger)
	case common.LLMProviderGemini:
		return NewGeminiService(cfg, sem, retry, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider '%s': must be 'claude' or 'gemini'", provider)
	}
}
