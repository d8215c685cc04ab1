package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements the LLMClient interface for OpenAI's chat completions API.
// The SDK client is created lazily on the first request.
type OpenAIClient struct {
	apiKey    string
	baseURL   string
	transport http.RoundTripper

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL uses the SDK default.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// GetProviderName returns the provider name for this client.
func (c *OpenAIClient) GetProviderName() string {
	return chattypes.ProviderOpenAI
}

// IsConfigured returns true if the client has a valid API key.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// SetTransport sets the HTTP transport used for requests.
func (c *OpenAIClient) SetTransport(transport http.RoundTripper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = transport
	c.client = nil
}

func (c *OpenAIClient) initializeClientIfNeeded() (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is empty", ErrNotConfigured)
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

	client := openai.NewClient(options...)
	c.client = &client
	logger.Debug("OpenAI client initialized", "provider", chattypes.ProviderOpenAI, "base_url", c.baseURL)
	return c.client, nil
}

// SendChatCompletion sends the conversation to OpenAI and returns the first choice.
func (c *OpenAIClient) SendChatCompletion(ctx context.Context, history []chattypes.Message, model chattypes.ModelConfig) (chattypes.ProviderReply, error) {
	client, err := c.initializeClientIfNeeded()
	if err != nil {
		return chattypes.ProviderReply{}, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model.Model),
		Messages:    convertMessagesToOpenAI(history),
		Temperature: openai.Float(model.Temperature),
	}

	logger.Debug("Sending OpenAI request", "model", model.Model, "message_count", len(params.Messages))
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return chattypes.ProviderReply{}, fmt.Errorf("openai request failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return chattypes.ProviderReply{}, fmt.Errorf("%w: no response choices returned", ErrMalformedResponse)
	}

	reply := chattypes.ProviderReply{
		Text:  completion.Choices[0].Message.Content,
		Model: completion.Model,
		Usage: chattypes.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}
	if reply.Model == "" {
		reply.Model = model.Model
	}

	logger.Debug("OpenAI response received", "content_length", len(reply.Text), "input_tokens", reply.Usage.InputTokens, "output_tokens", reply.Usage.OutputTokens)
	return reply, nil
}

func convertMessagesToOpenAI(history []chattypes.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case chattypes.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case chattypes.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case chattypes.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	return messages
}
