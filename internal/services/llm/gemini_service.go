package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
)

// GeminiService implements the LLMService interface using the Google Gemini
// API. It mirrors ClaudeService: shared semaphore, optional rate spacing,
// per-call timeout, classified errors.
type GeminiService struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	sem         *Semaphore
	retry       *RetryConfig
	logger      arbor.ILogger
}

var _ interfaces.LLMService = (*GeminiService)(nil)

// convertMessagesToGemini converts []interfaces.Message to Gemini Content format.
// Maps Role values to provider's expected values and maintains chronological ordering.
// Extracts system messages separately for use with SystemInstruction.
// Returns the user/model messages, the first system message content (if any), and an error.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
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

	// Convert messages to Gemini format, excluding system messages
	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		// Handle system messages separately
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue // Don't add system messages to contents
		}

		// Map Role values to Gemini expected values
		var geminiRole string
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser // Default to user for unknown roles
		}

		// Create content part from text
		part := genai.NewPartFromText(msg.Content)
		content := &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{part},
		}

		contents = append(contents, content)
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance.
func NewGeminiService(cfg *common.Config, sem *Semaphore, retry *RetryConfig, logger arbor.ILogger) (*GeminiService, error) {
	apiKey, err := common.ResolveAPIKey("gemini_api_key", cfg.Gemini.APIKey)
	if err != nil {
		return nil, &ServiceError{
			Kind:     KindAuth,
			Provider: "gemini",
			Err:      fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY, RELATIO_GEMINI_API_KEY, or gemini.api_key in config): %w", err),
		}
	}

	timeout, err := time.ParseDuration(cfg.Gemini.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid gemini timeout '%s': %w", cfg.Gemini.Timeout, err)
	}

	var limiter *rate.Limiter
	if cfg.Gemini.RateLimit != "" {
		spacing, err := time.ParseDuration(cfg.Gemini.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid gemini rate limit '%s': %w", cfg.Gemini.RateLimit, err)
		}
		limiter = rate.NewLimiter(rate.Every(spacing), 1)
	}

	// Initialize genai client
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		client:      client,
		model:       cfg.Gemini.Model,
		temperature: cfg.Gemini.Temperature,
		timeout:     timeout,
		limiter:     limiter,
		sem:         sem,
		retry:       retry,
		logger:      logger,
	}

	logger.Info().
		Str("model", cfg.Gemini.Model).
		Dur("timeout", timeout).
		Int("max_concurrent", sem.Cap()).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// GenerateJSON produces a completion and extracts its JSON payload. Parse
// failures retry on the same budget as transport failures.
func (s *GeminiService) GenerateJSON(ctx context.Context, req *interfaces.CompletionRequest) (json.RawMessage, error) {
	payload, err := callWithRetry(ctx, s.logger, s.retry, "gemini", func(ctx context.Context) (string, error) {
		text, err := s.generateOnce(ctx, req)
		if err != nil {
			return "", err
		}
		extracted, err := ExtractJSON(text)
		if err != nil {
			return "", &ServiceError{Kind: KindParse, Provider: "gemini", Err: err}
		}
		return extracted, nil
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(payload), nil
}

// generateOnce performs a single API call under the shared semaphore with
// the per-call timeout applied.
func (s *GeminiService) generateOnce(ctx context.Context, req *interfaces.CompletionRequest) (string, error) {
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

	geminiContents, systemText, err := convertMessagesToGemini(req.Messages)
	if err != nil {
		return "", &ServiceError{Kind: KindPermanent, Provider: "gemini", Err: err}
	}
	if req.System != "" {
		systemText = req.System
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.temperature),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(callCtx, s.model, geminiContents, config)
	if err != nil {
		return "", Classify("gemini", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ServiceError{
			Kind:     KindParse,
			Provider: "gemini",
			Err:      fmt.Errorf("empty response from Gemini API"),
		}
	}

	responseText := resp.Text()
	if strings.TrimSpace(responseText) == "" {
		return "", &ServiceError{
			Kind:     KindParse,
			Provider: "gemini",
			Err:      fmt.Errorf("empty text in Gemini response"),
		}
	}

	return responseText, nil
}

// HealthCheck verifies the API is reachable and credentials are accepted
// with a minimal single-attempt completion.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	s.logger.Debug().Msg("Running Gemini LLM service health check")

	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &interfaces.CompletionRequest{
		Messages: []interfaces.Message{{Role: "user", Content: "ping"}},
	}
	if _, err := s.generateOnce(healthCtx, req); err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}

	s.logger.Debug().Str("model", s.model).Msg("Gemini LLM service health check passed")
	return nil
}

// Close releases resources and performs cleanup operations.
func (s *GeminiService) Close() error {
	s.logger.Info().Msg("Closing Gemini LLM service")

	// Clear client reference (genai.Client doesn't require explicit Close)
	s.client = nil

	return nil
}
