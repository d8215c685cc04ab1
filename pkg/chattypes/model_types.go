// Package chattypes defines model-selection types for mychat.
// This file contains the tier enumeration presented by the UI and the resolved model configuration
// that is handed to the completion service.
package chattypes

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Temperature bounds accepted by every supported provider.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

var (
	// ErrUnknownTier is returned when a model option matches neither enumerated tier.
	ErrUnknownTier = errors.New("unknown model tier")

	// ErrTemperatureRange is returned when a temperature falls outside [0.0, 2.0].
	ErrTemperatureRange = errors.New("temperature out of range")

	// ErrUnknownProvider is returned when a model configuration names an unsupported provider.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Tier is one of the model options offered by the UI shell.
type Tier string

const (
	// TierFast is the cheaper, quicker backend.
	TierFast Tier = "fast"
	// TierAdvanced is the more capable, more expensive backend.
	TierAdvanced Tier = "advanced"
)

// Tiers lists every tier in display order.
func Tiers() []Tier {
	return []Tier{TierFast, TierAdvanced}
}

// ParseTier converts a UI option into a Tier. Anything other than the enumerated
// options is an input-validation error.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFast:
		return TierFast, nil
	case TierAdvanced:
		return TierAdvanced, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownTier, s, TierFast, TierAdvanced)
	}
}

// Provider names understood by the client factory.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// SupportedProviders returns the provider names the completion service can reach.
func SupportedProviders() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini}
}

// ModelConfig is the resolved backend selection for one completion request.
type ModelConfig struct {
	Tier        Tier    `json:"tier"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// ValidateTemperature checks that t lies within the accepted range.
func ValidateTemperature(t float64) error {
	if t < MinTemperature || t > MaxTemperature || math.IsNaN(t) {
		return fmt.Errorf("%w: %v (expected %.1f to %.1f)", ErrTemperatureRange, t, MinTemperature, MaxTemperature)
	}
	return nil
}

// Validate reports whether the configuration can be sent to a provider.
func (m ModelConfig) Validate() error {
	known := false
	for _, p := range SupportedProviders() {
		if m.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, m.Provider)
	}
	if strings.TrimSpace(m.Model) == "" {
		return fmt.Errorf("model name is required for tier %q", m.Tier)
	}
	return ValidateTemperature(m.Temperature)
}
