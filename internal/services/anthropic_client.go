// Package services provides LLM client implementations and core services for mychat.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// anthropicMaxTokens is the reply budget sent with every request; the API requires one.
	anthropicMaxTokens = 1024
	// anthropicMaxTemperature is the ceiling the Messages API accepts.
	anthropicMaxTemperature = 1.0
)

// AnthropicClient implements the LLMClient interface for Anthropic's Messages API.
type AnthropicClient struct {
	apiKey    string
	baseURL   string
	transport http.RoundTripper

	mu     sync.Mutex
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client with lazy initialization.
func NewAnthropicClient(apiKey, baseURL string) *AnthropicClient {
	return &AnthropicClient{
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// GetProviderName returns the provider name for this client.
func (c *AnthropicClient) GetProviderName() string {
	return chattypes.ProviderAnthropic
}

// IsConfigured returns true if the client has a valid API key.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

// SetTransport sets the HTTP transport used for requests.
func (c *AnthropicClient) SetTransport(transport http.RoundTripper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = transport
	c.client = nil
}

func (c *AnthropicClient) initializeClientIfNeeded() (*anthropic.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is empty", ErrNotConfigured)
	}

	options := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithMaxRetries(0),
	}
	if c.baseURL != "" {
		options = append(options, option.WithBaseURL(c.baseURL))
	}
	if c.transport != nil {
		options = append(options, option.WithHTTPClient(&http.Client{Transport: c.transport}))
	}

	client := anthropic.NewClient(options...)
	c.client = &client
	logger.Debug("Anthropic client initialized", "provider", chattypes.ProviderAnthropic)
	return c.client, nil
}

// SendChatCompletion sends the conversation to Anthropic. System messages are
// lifted into the request's system prompt.
func (c *AnthropicClient) SendChatCompletion(ctx context.Context, history []chattypes.Message, model chattypes.ModelConfig) (chattypes.ProviderReply, error) {
	client, err := c.initializeClientIfNeeded()
	if err != nil {
		return chattypes.ProviderReply{}, err
	}

	messages, system := convertMessagesToAnthropic(history)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model.Model),
		MaxTokens:   anthropicMaxTokens,
		Messages:    messages,
		Temperature: anthropic.Float(anthropicTemperature(model.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	logger.Debug("Sending Anthropic request", "model", model.Model, "message_count", len(messages))
	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return chattypes.ProviderReply{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	if len(message.Content) == 0 {
		return chattypes.ProviderReply{}, fmt.Errorf("%w: no response content returned", ErrMalformedResponse)
	}

	var content strings.Builder
	for _, block := range message.Content {
		content.WriteString(block.Text)
	}

	reply := chattypes.ProviderReply{
		Text:  content.String(),
		Model: string(message.Model),
		Usage: chattypes.Usage{
			InputTokens:  message.Usage.InputTokens,
			OutputTokens: message.Usage.OutputTokens,
		},
	}
	if reply.Model == "" {
		reply.Model = model.Model
	}
	if message.StopReason == anthropic.StopReasonMaxTokens {
		logger.Warn("Anthropic reply truncated at the token limit", "model", reply.Model, "max_tokens", anthropicMaxTokens)
	}

	logger.Debug("Anthropic response received", "content_length", content.Len(), "input_tokens", reply.Usage.InputTokens, "output_tokens", reply.Usage.OutputTokens)
	return reply, nil
}

// anthropicTemperature clamps the 0-2 UI range to what the Messages API accepts.
func anthropicTemperature(t float64) float64 {
	if t > anthropicMaxTemperature {
		logger.Debug("Clamping temperature for Anthropic", "requested", t, "sent", anthropicMaxTemperature)
		return anthropicMaxTemperature
	}
	return t
}

func convertMessagesToAnthropic(history []chattypes.Message) ([]anthropic.MessageParam, string) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	var system []string

	for _, msg := range history {
		switch msg.Role {
		case chattypes.RoleSystem:
			system = append(system, msg.Content)
		case chattypes.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case chattypes.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return messages, strings.Join(system, "\n\n")
}
