package services

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"mychat/internal/data/embedded"
	"mychat/internal/logger"
	"mychat/pkg/chattypes"

	"gopkg.in/yaml.v3"
)

const tokensPerMillion = 1_000_000.0

// Price is the USD cost per million input and output tokens for one model.
type Price struct {
	Provider string  `yaml:"provider"`
	Input    float64 `yaml:"input"`
	Output   float64 `yaml:"output"`
}

// Cost returns the dollar cost of usage at this price.
func (p Price) Cost(usage chattypes.Usage) float64 {
	return float64(usage.InputTokens)/tokensPerMillion*p.Input +
		float64(usage.OutputTokens)/tokensPerMillion*p.Output
}

type pricingCatalog struct {
	Version  string           `yaml:"version"`
	Currency string           `yaml:"currency"`
	Models   map[string]Price `yaml:"models"`
}

// PricingService resolves token prices from the embedded catalog plus overrides.
type PricingService struct {
	mu          sync.RWMutex
	overrides   map[string]Price
	prices      map[string]Price
	version     string
	initialized bool
}

// NewPricingService creates a pricing service. Overrides replace catalog entries by model name.
func NewPricingService(overrides map[string]Price) *PricingService {
	return &PricingService{overrides: overrides}
}

// Name returns the service name "pricing" for registration.
func (p *PricingService) Name() string {
	return "pricing"
}

// Initialize parses the embedded catalog and applies overrides.
func (p *PricingService) Initialize() error {
	logger.ServiceOperation("pricing", "initialize", "starting")

	prices, version, err := parsePricingCatalog(embedded.PricingCatalogData)
	if err != nil {
		return err
	}
	for model, price := range p.overrides {
		if price.Input < 0 || price.Output < 0 {
			return fmt.Errorf("negative price override for model %s", model)
		}
		prices[model] = price
	}

	p.mu.Lock()
	p.prices = prices
	p.version = version
	p.initialized = true
	p.mu.Unlock()

	logger.ServiceOperation("pricing", "initialize", "completed", "models", len(prices), "catalog_version", version)
	return nil
}

func parsePricingCatalog(data []byte) (map[string]Price, string, error) {
	var catalog pricingCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, "", fmt.Errorf("failed to parse pricing catalog: %w", err)
	}
	if catalog.Currency != "" && catalog.Currency != "USD" {
		return nil, "", fmt.Errorf("unsupported pricing currency %q", catalog.Currency)
	}
	prices := make(map[string]Price, len(catalog.Models))
	for model, price := range catalog.Models {
		if price.Input < 0 || price.Output < 0 {
			return nil, "", fmt.Errorf("negative price for model %s in catalog", model)
		}
		prices[model] = price
	}
	return prices, catalog.Version, nil
}

// snapshotSuffix matches the version tail providers append to a model name:
// "-0613", "-001", "-20250514" or "-2024-08-06".
var snapshotSuffix = regexp.MustCompile(`-(\d{3,4}|\d{8}|\d{4}-\d{2}-\d{2})$`)

// Lookup returns the price of model. An exact match wins; otherwise a dated
// snapshot such as "gpt-4o-2024-08-06" resolves to its base name "gpt-4o".
// Any other variant ("gpt-4.1-nano", "gemini-2.5-flash-lite") is unpriced.
func (p *PricingService) Lookup(model string) (Price, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return Price{}, fmt.Errorf("pricing service not initialized")
	}
	if price, ok := p.prices[model]; ok {
		return price, nil
	}
	if loc := snapshotSuffix.FindStringIndex(model); loc != nil {
		if price, ok := p.prices[model[:loc[0]]]; ok {
			return price, nil
		}
	}
	return Price{}, fmt.Errorf("%w: no price for model %q", ErrMalformedResponse, model)
}

// HasPrice reports whether model can be priced.
func (p *PricingService) HasPrice(model string) bool {
	_, err := p.Lookup(model)
	return err == nil
}

// Cost prices usage for model.
func (p *PricingService) Cost(model string, usage chattypes.Usage) (float64, error) {
	price, err := p.Lookup(model)
	if err != nil {
		return 0, err
	}
	return price.Cost(usage), nil
}

// Models returns the priced model names in sorted order.
func (p *PricingService) Models() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	models := make([]string, 0, len(p.prices))
	for name := range p.prices {
		models = append(models, name)
	}
	sort.Strings(models)
	return models
}

// CatalogVersion returns the version string of the embedded catalog.
func (p *PricingService) CatalogVersion() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}
