package services

import (
	"context"
	"fmt"
	"time"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"
)

// ClientProvider hands out provider clients by name.
type ClientProvider interface {
	GetClient(provider string) (chattypes.LLMClient, error)
}

// ModelPricer prices token usage for a model.
type ModelPricer interface {
	Cost(model string, usage chattypes.Usage) (float64, error)
}

// CompletionService implements chattypes.Completer on top of provider clients and pricing.
type CompletionService struct {
	clients ClientProvider
	pricer  ModelPricer
	now     func() time.Time
}

// NewCompletionService creates the completion service.
func NewCompletionService(clients ClientProvider, pricer ModelPricer) *CompletionService {
	return &CompletionService{
		clients: clients,
		pricer:  pricer,
		now:     time.Now,
	}
}

// Name returns the service name "completion" for registration.
func (s *CompletionService) Name() string {
	return "completion"
}

// Initialize checks that the collaborators are wired.
func (s *CompletionService) Initialize() error {
	if s.clients == nil || s.pricer == nil {
		return fmt.Errorf("completion service requires a client provider and a pricer")
	}
	logger.ServiceOperation("completion", "initialize", "completed")
	return nil
}

// Complete sends history to the provider selected by model and prices the reply.
// Every failure is a *chattypes.CompletionServiceError.
func (s *CompletionService) Complete(ctx context.Context, history []chattypes.Message, model chattypes.ModelConfig) (chattypes.Reply, error) {
	client, err := s.clients.GetClient(model.Provider)
	if err != nil {
		return chattypes.Reply{}, classifyError(model.Provider, model.Model, err)
	}

	start := s.now()
	resp, err := client.SendChatCompletion(ctx, history, model)
	if err != nil {
		cerr := classifyError(model.Provider, model.Model, err)
		logger.Warn("Completion failed", "provider", model.Provider, "model", model.Model, "kind", cerr.Kind, "status", cerr.StatusCode)
		return chattypes.Reply{}, cerr
	}

	cost, err := s.pricer.Cost(model.Model, resp.Usage)
	if err != nil {
		return chattypes.Reply{}, classifyError(model.Provider, model.Model, err)
	}

	logger.Debug("Completion succeeded",
		"provider", model.Provider,
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"cost", cost,
		"duration", s.now().Sub(start))

	return chattypes.Reply{
		Text:  resp.Text,
		Cost:  cost,
		Usage: resp.Usage,
		Model: resp.Model,
	}, nil
}
