package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mychat/pkg/chattypes"
)

func newInitializedPricing(t *testing.T, overrides map[string]Price) *PricingService {
	t.Helper()
	p := NewPricingService(overrides)
	require.NoError(t, p.Initialize())
	return p
}

func TestPricingService_Name(t *testing.T) {
	assert.Equal(t, "pricing", NewPricingService(nil).Name())
}

func TestPricingService_Uninitialized(t *testing.T) {
	_, err := NewPricingService(nil).Lookup("gpt-4")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestPricingService_DefaultTiersArePriced(t *testing.T) {
	p := newInitializedPricing(t, nil)
	assert.True(t, p.HasPrice("gpt-3.5-turbo-0613"))
	assert.True(t, p.HasPrice("gpt-4"))
	assert.NotEmpty(t, p.CatalogVersion())
	assert.Contains(t, p.Models(), "gpt-4o-mini")
}

func TestPricingService_Cost(t *testing.T) {
	p := newInitializedPricing(t, nil)

	// gpt-4: $30 in / $60 out per million tokens.
	cost, err := p.Cost("gpt-4", chattypes.Usage{InputTokens: 1000, OutputTokens: 500})
	require.NoError(t, err)
	assert.InDelta(t, 0.06, cost, 1e-12)

	cost, err = p.Cost("gpt-4", chattypes.Usage{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, cost)
}

func TestPricingService_SnapshotSuffix(t *testing.T) {
	p := newInitializedPricing(t, nil)

	base, err := p.Lookup("gpt-4o")
	require.NoError(t, err)
	for _, model := range []string{"gpt-4o-2024-08-06", "gpt-4o-0806", "gpt-4o-20240806"} {
		dated, err := p.Lookup(model)
		require.NoError(t, err, model)
		assert.Equal(t, base, dated, model)
	}

	mini, err := p.Lookup("gpt-4o-mini-2024-07-18")
	require.NoError(t, err)
	assert.InDelta(t, 0.15, mini.Input, 1e-12)

	haiku, err := p.Lookup("claude-3-5-haiku-20241022")
	require.NoError(t, err)
	assert.InDelta(t, 0.80, haiku.Input, 1e-12)
}

func TestPricingService_VariantsAreNotSnapshots(t *testing.T) {
	p := newInitializedPricing(t, nil)

	tests := []string{
		"gpt-4.1-nano",
		"gpt-4.5-preview",
		"gpt-4-32k",
		"gemini-2.5-flash-lite",
		"gpt-4o-audio-preview",
	}
	for _, model := range tests {
		t.Run(model, func(t *testing.T) {
			_, err := p.Lookup(model)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.False(t, p.HasPrice(model))
		})
	}
}

func TestPricingService_UnknownModel(t *testing.T) {
	p := newInitializedPricing(t, nil)
	_, err := p.Cost("mystery-model", chattypes.Usage{InputTokens: 1})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, p.HasPrice("mystery-model"))
}

func TestPricingService_Overrides(t *testing.T) {
	p := newInitializedPricing(t, map[string]Price{
		"gpt-4":         {Input: 1, Output: 2},
		"local-llama-3": {Provider: "openai", Input: 0, Output: 0},
	})

	cost, err := p.Cost("gpt-4", chattypes.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, cost, 1e-12)
	assert.True(t, p.HasPrice("local-llama-3"))
}

func TestPricingService_NegativeOverride(t *testing.T) {
	p := NewPricingService(map[string]Price{"gpt-4": {Input: -1}})
	assert.Error(t, p.Initialize())
}

func TestParsePricingCatalog(t *testing.T) {
	prices, version, err := parsePricingCatalog([]byte("version: \"x\"\ncurrency: USD\nmodels:\n  m:\n    input: 1\n    output: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", version)
	assert.Equal(t, Price{Input: 1, Output: 2}, prices["m"])

	_, _, err = parsePricingCatalog([]byte("currency: EUR\n"))
	assert.Error(t, err)

	_, _, err = parsePricingCatalog([]byte("models: [unclosed"))
	assert.Error(t, err)

	_, _, err = parsePricingCatalog([]byte("models:\n  m:\n    input: -1\n"))
	assert.Error(t, err)
}
