// Package config loads mychat configuration from defaults, config files, .env files,
// environment variables and command-line flags.
//
// Priority (highest to lowest): flags > environment > .env files > config file > defaults.
// .env files never override variables already present in the real environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mychat/internal/logger"
	"mychat/pkg/chattypes"
)

// EnvPrefix is prepended to every configuration key looked up in the environment.
const EnvPrefix = "MYCHAT"

// TierConfig binds a UI tier to a provider model.
type TierConfig struct {
	Label    string `mapstructure:"label"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

// ProviderConfig holds credentials and endpoint overrides for one provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// PriceOverride replaces or adds a catalog price, USD per million tokens.
type PriceOverride struct {
	Model  string  `mapstructure:"model"`
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

// RateLimitConfig limits chat submissions across the web server. PerMinute 0 disables it.
type RateLimitConfig struct {
	PerMinute float64 `mapstructure:"per_minute"`
	Burst     int     `mapstructure:"burst"`
}

// Config is the complete mychat configuration.
type Config struct {
	SystemPrompt string                    `mapstructure:"system_prompt"`
	Listen       string                    `mapstructure:"listen"`
	Temperature  float64                   `mapstructure:"temperature"`
	Tiers        map[string]TierConfig     `mapstructure:"tiers"`
	Providers    map[string]ProviderConfig `mapstructure:"providers"`
	Pricing      []PriceOverride           `mapstructure:"pricing"`
	RateLimit    RateLimitConfig           `mapstructure:"rate_limit"`
	SessionTTL   time.Duration             `mapstructure:"session_ttl"`
	LogLevel     string                    `mapstructure:"log_level"`
	LogFile      string                    `mapstructure:"log_file"`
	DebugHTTP    bool                      `mapstructure:"debug_http"`

	// ConfigFileUsed is the config file that was read, empty when none was found.
	ConfigFileUsed string `mapstructure:"-"`
	// DotEnvLoaded lists the .env files that were applied.
	DotEnvLoaded []string `mapstructure:"-"`
}

// LoadOptions control where configuration files are searched for.
type LoadOptions struct {
	// ConfigFile is an explicit config file path; when set, a missing file is an error.
	ConfigFile string
	// WorkDir is searched for mychat.yaml and .env. Defaults to the current directory.
	WorkDir string
	// ConfigDir is searched for config.yaml and .env. Defaults to <user config dir>/mychat.
	ConfigDir string
}

// SetDefaults registers every configuration key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("system_prompt", "You are a helpful assistant.")
	v.SetDefault("listen", ":8501")
	v.SetDefault("temperature", 0.0)

	v.SetDefault("tiers.fast.label", "GPT-3.5")
	v.SetDefault("tiers.fast.provider", chattypes.ProviderOpenAI)
	v.SetDefault("tiers.fast.model", "gpt-3.5-turbo-0613")
	v.SetDefault("tiers.advanced.label", "GPT-4")
	v.SetDefault("tiers.advanced.provider", chattypes.ProviderOpenAI)
	v.SetDefault("tiers.advanced.model", "gpt-4")

	for _, provider := range chattypes.SupportedProviders() {
		v.SetDefault("providers."+provider+".api_key", "")
		v.SetDefault("providers."+provider+".base_url", "")
	}

	v.SetDefault("pricing", []map[string]any{})
	v.SetDefault("rate_limit.per_minute", 0.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("log_level", "")
	v.SetDefault("log_file", "")
	v.SetDefault("debug_http", false)
}

// bindEnv wires MYCHAT_-prefixed variables for all keys plus the conventional provider key names.
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	apiKeyEnv := map[string][]string{
		chattypes.ProviderOpenAI:    {"MYCHAT_OPENAI_API_KEY", "OPENAI_API_KEY"},
		chattypes.ProviderAnthropic: {"MYCHAT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		chattypes.ProviderGemini:    {"MYCHAT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}
	for provider, names := range apiKeyEnv {
		args := append([]string{"providers." + provider + ".api_key"}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", provider, err)
		}
	}
	return nil
}

// Load reads configuration into a Config. Flags must already be bound to v.
func Load(v *viper.Viper, opts LoadOptions) (*Config, error) {
	opts = opts.withDefaults()
	SetDefaults(v)

	if err := readConfigFile(v, opts); err != nil {
		return nil, err
	}

	loaded, err := loadDotEnvFiles(
		filepath.Join(opts.WorkDir, ".env"),
		filepath.Join(opts.ConfigDir, ".env"),
	)
	if err != nil {
		return nil, err
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.ConfigFileUsed = v.ConfigFileUsed()
	cfg.DotEnvLoaded = loaded

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Configuration loaded", "config_file", cfg.ConfigFileUsed, "dotenv", cfg.DotEnvLoaded, "listen", cfg.Listen)
	return cfg, nil
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.WorkDir = wd
		}
	}
	if o.ConfigDir == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			o.ConfigDir = filepath.Join(dir, "mychat")
		}
	}
	return o
}

func readConfigFile(v *viper.Viper, opts LoadOptions) error {
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
		return nil
	}

	candidates := []string{
		filepath.Join(opts.WorkDir, "mychat.yaml"),
		filepath.Join(opts.ConfigDir, "config.yaml"),
	}
	for _, path := range candidates {
		if !fileExists(path) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// loadDotEnvFiles applies each existing .env file to the process environment without
// overriding variables that are already set. Missing files are skipped.
func loadDotEnvFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		if !fileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("failed to parse .env file %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Validate checks that the configuration can drive a session.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if err := chattypes.ValidateTemperature(c.Temperature); err != nil {
		errs = append(errs, fmt.Errorf("default temperature: %w", err))
	}
	for _, tier := range chattypes.Tiers() {
		tc, ok := c.Tiers[string(tier)]
		if !ok {
			errs = append(errs, fmt.Errorf("tier %q is not configured", tier))
			continue
		}
		cfg := chattypes.ModelConfig{Tier: tier, Provider: tc.Provider, Model: tc.Model, Temperature: c.Temperature}
		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("tier %q: %w", tier, err))
		}
	}
	for name := range c.Tiers {
		if _, err := chattypes.ParseTier(name); err != nil {
			errs = append(errs, fmt.Errorf("tiers: %w", err))
		}
	}
	for _, p := range c.Pricing {
		if p.Model == "" {
			errs = append(errs, errors.New("pricing override without model name"))
		}
		if p.Input < 0 || p.Output < 0 {
			errs = append(errs, fmt.Errorf("pricing override for %q has a negative price", p.Model))
		}
	}
	if c.RateLimit.PerMinute < 0 {
		errs = append(errs, errors.New("rate_limit.per_minute cannot be negative"))
	}
	if c.RateLimit.PerMinute > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate_limit.burst must be at least 1 when rate limiting is enabled"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("session_ttl cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ModelFor resolves a tier and temperature into a model configuration.
func (c *Config) ModelFor(tier chattypes.Tier, temperature float64) (chattypes.ModelConfig, error) {
	tc, ok := c.Tiers[string(tier)]
	if !ok {
		return chattypes.ModelConfig{}, fmt.Errorf("%w: %q", chattypes.ErrUnknownTier, tier)
	}
	cfg := chattypes.ModelConfig{
		Tier:        tier,
		Provider:    tc.Provider,
		Model:       tc.Model,
		Temperature: temperature,
	}
	if err := cfg.Validate(); err != nil {
		return chattypes.ModelConfig{}, err
	}
	return cfg, nil
}

// TierLabel returns the display label of a tier, falling back to the tier name.
func (c *Config) TierLabel(tier chattypes.Tier) string {
	if tc, ok := c.Tiers[string(tier)]; ok && tc.Label != "" {
		return tc.Label
	}
	return string(tier)
}

// Provider returns the settings for a provider; the zero value when unset.
func (c *Config) Provider(name string) ProviderConfig {
	return c.Providers[name]
}
