package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/abhisek/conjugar/internal/eventlog"
	"github.com/abhisek/conjugar/internal/logger"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with timeout, retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, events eventlog.Recorder, log *logger.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case ProviderMock:
		base, err = newConfiguredMock(cfg.Mock)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Wrap with middleware: caller → timeout → retry → logging → base
	var p Provider = WithLogging(base, cfg.Provider, events, log)
	if cfg.Retry.MaxAttempts > 1 {
		p = WithRetry(p, cfg.Retry)
	}
	if cfg.Timeout > 0 {
		p = WithTimeout(p, cfg.Timeout)
	}
	return p, nil
}

// newConfiguredMock answers every request with the contents of
// cfg.ResponseFile, or fails every request when no file is set.
func newConfiguredMock(cfg MockConfig) (*MockProvider, error) {
	m := NewMockProvider()
	if cfg.ResponseFile == "" {
		return m, nil
	}
	data, err := os.ReadFile(cfg.ResponseFile)
	if err != nil {
		return nil, fmt.Errorf("read mock response: %w", err)
	}
	fallback := TextResponse(string(data))
	m.Fallback = &fallback
	return m, nil
}
