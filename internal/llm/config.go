package llm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted in Config.Provider.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	Provider string

	Anthropic  AnthropicConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	OpenRouter OpenRouterConfig
	Mock       MockConfig
	Retry      RetryConfig

	// Timeout is the maximum duration for a single LLM request
	// (including retries). Zero disables the timeout.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string // Default: "claude-haiku"
	BaseURL string // Optional. Points at a proxy or gateway.
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4.1-mini"
	BaseURL string // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey   string
	Model    string // Default: "gemini-flash"
	Project  string // Selects Vertex AI when set.
	Location string // Vertex AI region. Default: "us-central1"
	BaseURL  string // Optional endpoint override.
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey   string
	Model    string // Default: "openai/gpt-4.1-mini"
	BaseURL  string // Default: "https://openrouter.ai/api/v1"
	AppTitle string // Sent as X-Title. Default: "Conjugar"
	AppURL   string // Sent as HTTP-Referer when set.
}

// MockConfig configures the offline provider.
type MockConfig struct {
	// ResponseFile holds the raw completion returned for every request.
	ResponseFile string
}

// RetryConfig configures retry behavior for transient failures.
// MaxAttempts of 1 means a single try with no retry.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderOpenAI,
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4.1-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: defaultOpenRouterModel,
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 2 * time.Minute,
	}
}

// ConfigFromEnv layers CONJUGAR_* variables over DefaultConfig. Unless
// CONJUGAR_LLM_PROVIDER names a provider, the vendors' own key variables
// pick one (see DiscoverConfig). OPENAI_API_KEY and OPENAI_MODEL are also
// honoured as fallbacks for their CONJUGAR_ counterparts.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if p := os.Getenv("CONJUGAR_LLM_PROVIDER"); p != "" {
		cfg.Provider = p
	} else if discovered, ok := DiscoverConfig(); ok {
		cfg = discovered
	}

	for _, b := range []struct {
		dst  *string
		keys []string
	}{
		{&cfg.Anthropic.APIKey, []string{"CONJUGAR_ANTHROPIC_API_KEY"}},
		{&cfg.Anthropic.Model, []string{"CONJUGAR_ANTHROPIC_MODEL"}},
		{&cfg.Anthropic.BaseURL, []string{"CONJUGAR_ANTHROPIC_BASE_URL"}},
		{&cfg.OpenAI.APIKey, []string{"CONJUGAR_OPENAI_API_KEY", "OPENAI_API_KEY"}},
		{&cfg.OpenAI.Model, []string{"CONJUGAR_OPENAI_MODEL", "OPENAI_MODEL"}},
		{&cfg.OpenAI.BaseURL, []string{"CONJUGAR_OPENAI_BASE_URL"}},
		{&cfg.Gemini.APIKey, []string{"CONJUGAR_GEMINI_API_KEY"}},
		{&cfg.Gemini.Model, []string{"CONJUGAR_GEMINI_MODEL"}},
		{&cfg.Gemini.Project, []string{"CONJUGAR_GEMINI_PROJECT"}},
		{&cfg.Gemini.Location, []string{"CONJUGAR_GEMINI_LOCATION"}},
		{&cfg.OpenRouter.APIKey, []string{"CONJUGAR_OPENROUTER_API_KEY"}},
		{&cfg.OpenRouter.Model, []string{"CONJUGAR_OPENROUTER_MODEL"}},
		{&cfg.OpenRouter.AppURL, []string{"CONJUGAR_OPENROUTER_APP_URL"}},
		{&cfg.Mock.ResponseFile, []string{"CONJUGAR_MOCK_RESPONSE_FILE"}},
	} {
		if v := firstEnv(b.keys...); v != "" {
			*b.dst = v
		}
	}

	if n, err := strconv.Atoi(os.Getenv("CONJUGAR_LLM_MAX_ATTEMPTS")); err == nil && n > 0 {
		cfg.Retry.MaxAttempts = n
	}
	if d, err := time.ParseDuration(os.Getenv("CONJUGAR_LLM_TIMEOUT")); err == nil {
		cfg.Timeout = d
	}
	return cfg
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// vendorKeys are the vendors' conventional key variables, in the order
// DiscoverConfig tries them.
var vendorKeys = []struct{ env, provider string }{
	{"OPENAI_API_KEY", ProviderOpenAI},
	{"ANTHROPIC_API_KEY", ProviderAnthropic},
	{"GEMINI_API_KEY", ProviderGemini},
	{"OPENROUTER_API_KEY", ProviderOpenRouter},
}

// DiscoverConfig returns a default Config for the first vendor whose
// conventional key variable is set, or false when none is.
func DiscoverConfig() (Config, bool) {
	for _, vk := range vendorKeys {
		key := os.Getenv(vk.env)
		if key == "" {
			continue
		}
		cfg := DefaultConfig()
		cfg.Provider = vk.provider
		apiKey, model := cfg.selected()
		*apiKey = key
		if m := os.Getenv("OPENAI_MODEL"); m != "" && vk.provider == ProviderOpenAI {
			*model = m
		}
		return cfg, true
	}
	return Config{}, false
}

// selected points at the API key and model of the chosen provider. Both
// are nil for the mock and for unknown providers.
func (c *Config) selected() (apiKey, model *string) {
	switch c.Provider {
	case ProviderAnthropic:
		return &c.Anthropic.APIKey, &c.Anthropic.Model
	case ProviderOpenAI:
		return &c.OpenAI.APIKey, &c.OpenAI.Model
	case ProviderGemini:
		return &c.Gemini.APIKey, &c.Gemini.Model
	case ProviderOpenRouter:
		return &c.OpenRouter.APIKey, &c.OpenRouter.Model
	}
	return nil, nil
}

// Validate checks that the selected provider can authenticate. Gemini
// may use a Vertex AI project with ambient credentials instead of a key.
func (c Config) Validate() error {
	if c.Provider == ProviderMock {
		return nil
	}
	apiKey, _ := c.selected()
	switch {
	case apiKey == nil:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	case *apiKey != "":
		return nil
	case c.Provider == ProviderGemini && c.Gemini.Project != "":
		return nil
	case c.Provider == ProviderGemini:
		return fmt.Errorf("CONJUGAR_GEMINI_API_KEY or CONJUGAR_GEMINI_PROJECT is required for the gemini provider")
	case c.Provider == ProviderOpenAI:
		return fmt.Errorf("OPENAI_API_KEY or CONJUGAR_OPENAI_API_KEY is required for the openai provider")
	default:
		return fmt.Errorf("CONJUGAR_%s_API_KEY is required for the %s provider", strings.ToUpper(c.Provider), c.Provider)
	}
}

// ModelName returns the configured model for the selected provider.
func (c Config) ModelName() string {
	if c.Provider == ProviderMock {
		return "mock"
	}
	if _, model := c.selected(); model != nil {
		return *model
	}
	return ""
}
