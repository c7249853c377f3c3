package llm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMockProvider_ReturnsCanedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Content: json.RawMessage(`{"b":2}`)},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp1.Content) != `{"a":1}` {
		t.Fatalf("expected {\"a\":1}, got %s", resp1.Content)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp2.Content) != `{"b":2}` {
		t.Fatalf("expected {\"b\":2}, got %s", resp2.Content)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error from empty queue")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`)},
	)

	req := Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" {
		t.Fatalf("expected system 'sys', got %q", mock.Calls[0].System)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{RetryAfter: 0}},
	)

	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestMockProvider_CancelledContext(t *testing.T) {
	mock := NewMockProvider(TextResponse("[]"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mock.Generate(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMockProvider_ModelID(t *testing.T) {
	mock := NewMockProvider()
	if mock.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", mock.ModelID())
	}
}

func TestAttributionContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithOwner(ctx, "ana")
	ctx = WithPurpose(ctx, "question-set-gen")
	got := AttributionFrom(ctx)
	if got.Purpose != "question-set-gen" || got.Owner != "ana" {
		t.Fatalf("unexpected attribution: %+v", got)
	}

	ctx = WithOwner(ctx, "luis")
	if got := AttributionFrom(ctx); got.Purpose != "question-set-gen" || got.Owner != "luis" {
		t.Fatalf("owner override lost purpose: %+v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: true,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: true,
		},
		{
			name:    "openai with key",
			cfg:     Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openrouter without key",
			cfg:     Config{Provider: "openrouter"},
			wantErr: true,
		},
		{
			name:    "gemini with key",
			cfg:     Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "g-test"}},
			wantErr: false,
		},
		{
			name:    "gemini on vertex",
			cfg:     Config{Provider: "gemini", Gemini: GeminiConfig{Project: "conjugar-prod"}},
			wantErr: false,
		},
		{
			name:    "gemini without key or project",
			cfg:     Config{Provider: "gemini"},
			wantErr: true,
		},
		{
			name:    "mock needs no key",
			cfg:     Config{Provider: "mock"},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONJUGAR_LLM_PROVIDER", "CONJUGAR_OPENAI_API_KEY", "CONJUGAR_OPENAI_MODEL",
		"CONJUGAR_ANTHROPIC_API_KEY", "CONJUGAR_GEMINI_API_KEY", "CONJUGAR_OPENROUTER_API_KEY",
		"CONJUGAR_GEMINI_PROJECT", "CONJUGAR_MOCK_RESPONSE_FILE",
		"CONJUGAR_LLM_MAX_ATTEMPTS", "CONJUGAR_LLM_TIMEOUT",
		"OPENAI_API_KEY", "OPENAI_MODEL", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearLLMEnv(t)
	cfg := ConfigFromEnv()

	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %q", cfg.Provider)
	}
	if cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Fatalf("expected gpt-4.1-mini, got %q", cfg.OpenAI.Model)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Fatalf("expected a single attempt by default, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestConfigFromEnv_OpenAIVariables(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("CONJUGAR_LLM_MAX_ATTEMPTS", "3")

	cfg := ConfigFromEnv()
	if cfg.Provider != ProviderOpenAI || cfg.OpenAI.APIKey != "sk-plain" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ModelName() != "gpt-4o" {
		t.Fatalf("expected gpt-4o, got %q", cfg.ModelName())
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConfigFromEnv_ExplicitProviderWins(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-plain")
	t.Setenv("CONJUGAR_LLM_PROVIDER", "anthropic")
	t.Setenv("CONJUGAR_ANTHROPIC_API_KEY", "sk-ant")

	cfg := ConfigFromEnv()
	if cfg.Provider != ProviderAnthropic {
		t.Fatalf("expected anthropic, got %q", cfg.Provider)
	}
	if cfg.ModelName() != "claude-haiku" {
		t.Fatalf("expected claude-haiku, got %q", cfg.ModelName())
	}
}

func TestDiscoverConfig(t *testing.T) {
	clearLLMEnv(t)
	if _, ok := DiscoverConfig(); ok {
		t.Fatal("expected no provider without keys")
	}

	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, ok := DiscoverConfig()
	if !ok || cfg.Provider != ProviderGemini {
		t.Fatalf("expected gemini, got %+v (ok=%v)", cfg.Provider, ok)
	}

	t.Setenv("OPENAI_API_KEY", "sk-key")
	cfg, _ = DiscoverConfig()
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("expected openai to take priority, got %q", cfg.Provider)
	}
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ProviderMock
	cfg.Retry.MaxAttempts = 2

	p, err := NewProvider(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", p.ModelID())
	}

	if _, err := NewProvider(context.Background(), Config{Provider: "bogus"}, nil, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := NewProvider(context.Background(), Config{Provider: ProviderOpenAI}, nil, nil); err == nil {
		t.Fatal("expected error for openai without key")
	}
}

func TestMockProvider_Fallback(t *testing.T) {
	mock := NewMockProvider(TextResponse("first"))
	fallback := TextResponse("again")
	mock.Fallback = &fallback

	for _, want := range []string{"first", "again", "again"} {
		resp, err := mock.Generate(context.Background(), Request{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(resp.Content) != want {
			t.Fatalf("content = %s, want %s", resp.Content, want)
		}
	}
}

func TestNewProvider_MockResponseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answer.json")
	if err := os.WriteFile(path, []byte(`[{"es":"Yo __.","answer":"como","tense":"pres"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Provider = ProviderMock
	cfg.Mock.ResponseFile = path
	p, err := NewProvider(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 2 {
		resp, err := p.Generate(context.Background(), Request{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Content) == 0 {
			t.Fatal("expected file contents")
		}
	}

	cfg.Mock.ResponseFile = filepath.Join(t.TempDir(), "missing.json")
	if _, err := NewProvider(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for missing response file")
	}
}
