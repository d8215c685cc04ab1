package services

import (
	"fmt"
	"net/http"
	"sync"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"
)

// ProviderSettings holds the credentials and endpoint for one provider.
type ProviderSettings struct {
	APIKey  string
	BaseURL string
}

// transportSetter is implemented by clients that accept a custom HTTP transport.
type transportSetter interface {
	SetTransport(http.RoundTripper)
}

// ClientFactory creates and caches provider clients by provider name.
type ClientFactory struct {
	settings  map[string]ProviderSettings
	transport http.RoundTripper

	mu      sync.RWMutex
	clients map[string]chattypes.LLMClient
}

// NewClientFactory creates a factory for the given per-provider settings.
func NewClientFactory(settings map[string]ProviderSettings) *ClientFactory {
	if settings == nil {
		settings = make(map[string]ProviderSettings)
	}
	return &ClientFactory{
		settings: settings,
		clients:  make(map[string]chattypes.LLMClient),
	}
}

// Name returns the service name "client_factory" for registration.
func (f *ClientFactory) Name() string {
	return "client_factory"
}

// Initialize logs which providers have credentials.
func (f *ClientFactory) Initialize() error {
	logger.ServiceOperation("client_factory", "initialize", "starting")
	for _, provider := range chattypes.SupportedProviders() {
		logger.Debug("Provider credentials", "provider", provider, "configured", f.settings[provider].APIKey != "")
	}
	logger.ServiceOperation("client_factory", "initialize", "completed")
	return nil
}

// SetTransport installs an HTTP transport on every client, cached or future.
func (f *ClientFactory) SetTransport(transport http.RoundTripper) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.transport = transport
	for _, client := range f.clients {
		if ts, ok := client.(transportSetter); ok {
			ts.SetTransport(transport)
		}
	}
}

// IsConfigured reports whether provider has an API key.
func (f *ClientFactory) IsConfigured(provider string) bool {
	return f.settings[provider].APIKey != ""
}

// GetClient returns the cached client for provider, creating it on first use.
func (f *ClientFactory) GetClient(provider string) (chattypes.LLMClient, error) {
	f.mu.RLock()
	client, ok := f.clients[provider]
	f.mu.RUnlock()
	if ok {
		return client, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring the write lock.
	if client, ok := f.clients[provider]; ok {
		return client, nil
	}

	settings := f.settings[provider]
	switch provider {
	case chattypes.ProviderOpenAI:
		client = NewOpenAIClient(settings.APIKey, settings.BaseURL)
	case chattypes.ProviderAnthropic:
		client = NewAnthropicClient(settings.APIKey, settings.BaseURL)
	case chattypes.ProviderGemini:
		client = NewGeminiClient(settings.APIKey, settings.BaseURL)
	default:
		return nil, fmt.Errorf("%w: %q", chattypes.ErrUnknownProvider, provider)
	}

	if !client.IsConfigured() {
		return nil, fmt.Errorf("%w: no API key for provider %s", ErrNotConfigured, provider)
	}
	if ts, ok := client.(transportSetter); ok && f.transport != nil {
		ts.SetTransport(f.transport)
	}

	f.clients[provider] = client
	logger.Debug("Created provider client", "provider", provider)
	return client, nil
}
