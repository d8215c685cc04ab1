package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"

	"google.golang.org/genai"
)

// GeminiClient implements the LLMClient interface for the Google Gemini API.
type GeminiClient struct {
	apiKey    string
	baseURL   string
	transport http.RoundTripper

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client with lazy initialization.
func NewGeminiClient(apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

// GetProviderName returns the provider name for this client.
func (c *GeminiClient) GetProviderName() string {
	return chattypes.ProviderGemini
}

// IsConfigured returns true if the client has a valid API key.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// SetTransport sets the HTTP transport used for requests.
func (c *GeminiClient) SetTransport(transport http.RoundTripper) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = transport
	c.client = nil
}

func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: google API key is empty", ErrNotConfigured)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	if c.transport != nil {
		clientConfig.HTTPClient = &http.Client{Transport: c.transport}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c.client = client
	logger.Debug("Gemini client initialized", "provider", chattypes.ProviderGemini)
	return c.client, nil
}

// SendChatCompletion sends the conversation to Gemini. Thought parts are dropped from the reply.
func (c *GeminiClient) SendChatCompletion(ctx context.Context, history []chattypes.Message, model chattypes.ModelConfig) (chattypes.ProviderReply, error) {
	client, err := c.initializeClientIfNeeded(ctx)
	if err != nil {
		return chattypes.ProviderReply{}, err
	}

	contents, system := convertMessagesToGemini(history)
	config := buildGeminiConfig(system, model)

	logger.Debug("Sending Gemini request", "model", model.Model, "content_count", len(contents))
	result, err := client.Models.GenerateContent(ctx, model.Model, contents, config)
	if err != nil {
		return chattypes.ProviderReply{}, fmt.Errorf("gemini request failed: %w", err)
	}

	return geminiReply(result, model.Model)
}

// convertMessagesToGemini maps history onto Gemini contents. System messages
// become the system instruction; assistant turns use the "model" role.
func convertMessagesToGemini(history []chattypes.Message) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(history))
	var system []string

	for _, msg := range history {
		switch msg.Role {
		case chattypes.RoleSystem:
			system = append(system, msg.Content)
		case chattypes.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case chattypes.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	return contents, strings.Join(system, "\n\n")
}

func buildGeminiConfig(system string, model chattypes.ModelConfig) *genai.GenerateContentConfig {
	temperature := float32(model.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return config
}

func geminiReply(result *genai.GenerateContentResponse, requested string) (chattypes.ProviderReply, error) {
	if result == nil || len(result.Candidates) == 0 {
		return chattypes.ProviderReply{}, fmt.Errorf("%w: no candidates returned", ErrMalformedResponse)
	}

	var content strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			content.WriteString(part.Text)
		}
	}

	reply := chattypes.ProviderReply{
		Text:  content.String(),
		Model: result.ModelVersion,
	}
	if reply.Model == "" {
		reply.Model = requested
	}
	if usage := result.UsageMetadata; usage != nil {
		// Thinking tokens are billed at the output rate.
		reply.Usage = chattypes.Usage{
			InputTokens:  int64(usage.PromptTokenCount),
			OutputTokens: int64(usage.CandidatesTokenCount) + int64(usage.ThoughtsTokenCount),
		}
	}

	logger.Debug("Gemini response received", "content_length", content.Len(), "input_tokens", reply.Usage.InputTokens, "output_tokens", reply.Usage.OutputTokens)
	return reply, nil
}
