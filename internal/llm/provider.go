// Package llm talks to the generative-text service that phrases grounded
// answers. The Provider interface keeps the chat layer independent of the
// concrete backend, and the HTTP client enforces the outbound resilience
// rules: timeout, one retry with backoff, circuit breaking, and typed
// upstream errors.
package llm

import "context"

// Request is a single completion request.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
}

// Response is the completion result.
type Response struct {
	Content string
	Model   string
}

// Provider generates text for a prompt. Implementations must honor context
// cancellation.
type Provider interface {
	// Name identifies the backend for logs and metrics.
	Name() string

	// Generate sends a prompt and returns the completion.
	Generate(ctx context.Context, req Request) (Response, error)
}
