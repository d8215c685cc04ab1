package main

import (
	"fmt"
	"strings"

	"mychat/internal/config"
	"mychat/internal/logger"
	"mychat/internal/services"
	"mychat/internal/version"
	"mychat/internal/web"
	"mychat/pkg/chattypes"
)

// app holds the initialized services shared by the serve and chat commands.
type app struct {
	cfg        *config.Config
	registry   *services.Registry
	pricing    *services.PricingService
	factory    *services.ClientFactory
	completion *services.CompletionService
	markdown   *services.MarkdownService
	debug      *services.DebugTransportService
}

// newApp registers and initializes every service for cfg. markdownStyle selects
// the Glamour style for terminal output.
func newApp(cfg *config.Config, markdownStyle string) (*app, error) {
	if err := version.ValidateVersion(); err != nil {
		logger.Warn("Build version is not a semantic version", "error", err)
	}

	overrides := make(map[string]services.Price, len(cfg.Pricing))
	for _, p := range cfg.Pricing {
		overrides[p.Model] = services.Price{Input: p.Input, Output: p.Output}
	}

	settings := make(map[string]services.ProviderSettings, len(cfg.Providers))
	for name, p := range cfg.Providers {
		settings[name] = services.ProviderSettings{APIKey: p.APIKey, BaseURL: p.BaseURL}
	}

	a := &app{
		cfg:      cfg,
		registry: services.NewRegistry(),
		pricing:  services.NewPricingService(overrides),
		factory:  services.NewClientFactory(settings),
		markdown: services.NewMarkdownService(markdownStyle, services.DefaultWordWrap),
	}
	a.completion = services.NewCompletionService(a.factory, a.pricing)

	toRegister := []chattypes.Service{a.pricing, a.factory, a.completion, a.markdown}
	if cfg.DebugHTTP {
		a.debug = services.NewDebugTransportService(nil)
		toRegister = append(toRegister, a.debug)
	}
	for _, svc := range toRegister {
		if err := a.registry.RegisterService(svc); err != nil {
			return nil, err
		}
	}
	if err := a.registry.InitializeAll(); err != nil {
		return nil, err
	}

	if a.debug != nil {
		a.factory.SetTransport(a.debug.Transport())
		logger.Info("HTTP debug logging enabled")
	}

	if err := a.checkTiers(); err != nil {
		return nil, err
	}
	return a, nil
}

// checkTiers fails when a tier's model cannot be priced and warns when its
// provider has no API key.
func (a *app) checkTiers() error {
	for _, tier := range chattypes.Tiers() {
		model, err := a.cfg.ModelFor(tier, a.cfg.Temperature)
		if err != nil {
			return err
		}
		if !a.pricing.HasPrice(model.Model) {
			return fmt.Errorf("no price known for model %q of tier %s; add a pricing entry to the config (catalog %s prices %s)",
				model.Model, tier, a.pricing.CatalogVersion(), strings.Join(a.pricing.Models(), ", "))
		}
		if !a.factory.IsConfigured(model.Provider) {
			logger.Warn("Provider has no API key; requests will fail", "tier", tier, "provider", model.Provider)
		}
	}
	return nil
}

// trafficRecorder returns the debug transport for the web UI, or nil when
// --debug-http is off.
func (a *app) trafficRecorder() web.TrafficRecorder {
	if a.debug == nil {
		return nil
	}
	return a.debug
}
