// Package chattypes defines the completion service contract for mychat.
// This file contains the reply, usage and error types exchanged with the completion service.
package chattypes

import (
	"context"
	"fmt"
)

// Usage reports the tokens billed for one completion call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Reply is the result of a successful completion call.
type Reply struct {
	Text  string  `json:"text"`
	Cost  float64 `json:"cost"`
	Usage Usage   `json:"usage"`
	Model string  `json:"model"`
}

// Completer is the consumed contract of the completion service: given the ordered
// conversation and a model configuration it returns a reply and its dollar cost, or fails
// with a *CompletionServiceError.
type Completer interface {
	Complete(ctx context.Context, history []Message, model ModelConfig) (Reply, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, history []Message, model ModelConfig) (Reply, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, history []Message, model ModelConfig) (Reply, error) {
	return f(ctx, history, model)
}

// ErrorKind classifies completion failures.
type ErrorKind string

// Completion failure classes.
const (
	KindNetwork        ErrorKind = "network"
	KindAuthentication ErrorKind = "authentication"
	KindRateLimited    ErrorKind = "rate_limited"
	KindMalformed      ErrorKind = "malformed_response"
	KindAPI            ErrorKind = "api"
)

// CompletionServiceError is the single error class surfaced by the completion service.
// It covers network failure, authentication failure, rate limiting and malformed responses.
type CompletionServiceError struct {
	Provider   string
	Model      string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *CompletionServiceError) Error() string {
	msg := fmt.Sprintf("completion service error (%s", e.Kind)
	if e.Provider != "" {
		msg += ", provider " + e.Provider
	}
	if e.Model != "" {
		msg += ", model " + e.Model
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CompletionServiceError) Unwrap() error {
	return e.Err
}

// ProviderReply is the raw result of one provider call, before pricing.
type ProviderReply struct {
	Text  string
	Usage Usage
	Model string
}

// LLMClient defines the interface for provider implementations (OpenAI, Anthropic, Gemini).
type LLMClient interface {
	// SendChatCompletion sends the ordered history and returns the assistant reply and token usage.
	SendChatCompletion(ctx context.Context, history []Message, model ModelConfig) (ProviderReply, error)

	// GetProviderName returns the name of the provider (e.g., "openai", "anthropic").
	GetProviderName() string

	// IsConfigured returns true if the client has valid configuration and can make requests.
	IsConfigured() bool
}
