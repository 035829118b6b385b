package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
)

// ClaudeService implements the LLMService interface using the Anthropic API.
// Concurrency, per-call timeouts, and retries are handled here so callers
// only see a completed response or a classified failure.
type ClaudeService struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	sem         *Semaphore
	retry       *RetryConfig
	logger      arbor.ILogger
}

var _ interfaces.LLMService = (*ClaudeService)(nil)

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam format.
// Maps Role values to provider's expected values and maintains chronological ordering.
// Extracts system messages separately for use with the System parameter.
// Returns the user/assistant messages, the first system message content (if any), and an error.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	// Check that at least one message has role "user"
	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	// Convert messages to Claude format, excluding system messages
	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		// Handle system messages separately
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue // Don't add system messages to messages array
		}

		// Create message based on role
		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			// Default to user for unknown roles
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// NewClaudeService creates a new Claude LLM service instance.
//
// Initialization resolves the API key (ANTHROPIC_API_KEY takes precedence
// over config), parses the per-call timeout, and sets up the optional
// request spacing limiter. The semaphore is created by the factory and
// shared with any other provider in the process.
func NewClaudeService(cfg *common.Config, sem *Semaphore, retry *RetryConfig, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey, err := common.ResolveAPIKey("anthropic_api_key", cfg.Claude.APIKey)
	if err != nil {
		return nil, &ServiceError{
			Kind:     KindAuth,
			Provider: "claude",
			Err:      fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, RELATIO_CLAUDE_API_KEY, or claude.api_key in config): %w", err),
		}
	}

	timeout, err := time.ParseDuration(cfg.Claude.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid claude timeout '%s': %w", cfg.Claude.Timeout, err)
	}

	var limiter *rate.Limiter
	if cfg.Claude.RateLimit != "" {
		spacing, err := time.ParseDuration(cfg.Claude.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid claude rate limit '%s': %w", cfg.Claude.RateLimit, err)
		}
		limiter = rate.NewLimiter(rate.Every(spacing), 1)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	service := &ClaudeService{
		client:      client,
		model:       cfg.Claude.Model,
		maxTokens:   cfg.Claude.MaxTokens,
		temperature: cfg.Claude.Temperature,
		timeout:     timeout,
		limiter:     limiter,
		sem:         sem,
		retry:       retry,
		logger:      logger,
	}

	logger.Info().
		Str("model", cfg.Claude.Model).
		Dur("timeout", timeout).
		Int("max_concurrent", sem.Cap()).
		Msg("Claude LLM service initialized")

	return service, nil
}

// GenerateJSON produces a completion and extracts its JSON payload. A
// response with no recoverable JSON counts as a retryable failure, so the
// transport call and the extraction share one retry budget.
func (s *ClaudeService) GenerateJSON(ctx context.Context, req *interfaces.CompletionRequest) (json.RawMessage, error) {
	payload, err := callWithRetry(ctx, s.logger, s.retry, "claude", func(ctx context.Context) (string, error) {
		text, err := s.generateOnce(ctx, req)
		if err != nil {
			return "", err
		}
		extracted, err := ExtractJSON(text)
		if err != nil {
			return "", &ServiceError{Kind: KindParse, Provider: "claude", Err: err}
		}
		return extracted, nil
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// generateOnce performs a single API call: semaphore slot, optional rate
// spacing, per-call timeout, then the request itself. Every error leaves
// classified.
func (s *ClaudeService) generateOnce(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
	if err := s.sem.Acquire(ctx); err != nil {
		return "", err
	}
	defer s.sem.Release()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claudeMessages, systemText, err := convertMessagesToClaude(req.Messages)
	if err != nil {
		return "", &ServiceError{Kind: KindPermanent, Provider: "claude", Err: err}
	}
	if req.System != "" {
		systemText = req.System
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}
	if s.temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	resp, err := s.client.Messages.New(callCtx, params)
	if err != nil {
		return "", Classify("claude", err)
	}

	// Extract text from response
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", &ServiceError{
			Kind:     KindParse,
			Provider: "claude",
			Err:      fmt.Errorf("empty response from Claude API"),
		}
	}

	return text.String(), nil
}

// HealthCheck verifies the API is reachable and credentials are accepted
// with a minimal single-attempt completion.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	s.logger.Debug().Msg("Running Claude LLM service health check")

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &interfaces.CompletionRequest{
		Messages:  []interfaces.Message{{Role: "user", Content: "ping"}},
		MaxTokens: 8,
	}
	if _, err := s.generateOnce(healthCtx, req); err != nil {
		return fmt.Errorf("claude health check failed: %w", err)
	}

	s.logger.Debug().Str("model", s.model).Msg("Claude LLM service health check passed")
	return nil
}

// Close releases resources and performs cleanup operations.
func (s *ClaudeService) Close() error {
	s.logger.Info().Msg("Closing Claude LLM service")

	s.client = anthropic.Client{} // Reset to zero value
	return nil
}
