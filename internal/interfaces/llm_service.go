package interfaces

import (
	"context"
	"encoding/json"
)

// Message represents a single message in a model conversation
type Message struct {
	// Role identifies the message sender: "user" or "assistant"
	Role string

	// Content contains the text content of the message
	Content string
}

// CompletionRequest carries one model invocation: the conversation, the
// optional system prompt, and the per-call output budget.
type CompletionRequest struct {
	// Messages is the conversation history in chronological order
	Messages []Message

	// System is the system prompt prepended to the conversation. Empty
	// means no system prompt.
	System string

	// MaxTokens caps the generated output length. Zero selects the
	// provider default.
	MaxTokens int
}

// LLMService defines the interface for language model operations.
// Implementations wrap a cloud provider (Anthropic, Google) behind shared
// concurrency, timeout, and retry handling so callers never deal with
// transport details.
type LLMService interface {
	// GenerateJSON produces a completion and extracts the JSON object it
	// contains. Responses wrapped in markdown fences or conversational
	// prose are unwrapped; a response with no parseable JSON counts as a
	// retryable failure, so the returned payload always unmarshals.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - req: Conversation, system prompt, and output budget
	//
	// Returns:
	//   - json.RawMessage: Extracted JSON payload
	//   - error: Error if no valid JSON is produced after all retries
	GenerateJSON(ctx context.Context, req *CompletionRequest) (json.RawMessage, error)

	// HealthCheck verifies the provider is reachable and credentials are
	// accepted. Implementations issue a minimal completion request.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - error: Error if the provider is not healthy or unreachable
	HealthCheck(ctx context.Context) error

	// Close releases resources and performs cleanup operations.
	//
	// Returns:
	//   - error: Error if cleanup fails
	Close() error
}
