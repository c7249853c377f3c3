package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOpenAI starts a chat-completions endpoint that records the last
// request and answers with the given status and body.
func serveOpenAI(t *testing.T, status int, body any, got *openai.ChatCompletionRequest) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	p, err := newOpenAIProviderRaw(OpenAIConfig{APIKey: "test-key", Model: "gpt-4.1-mini", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)
	return p
}

func completion(message map[string]any, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "gpt-4.1-mini-2025-04-14",
		"choices": []map[string]any{{"index": 0, "message": message, "finish_reason": finish}},
		"usage":   map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func assistant(content string) map[string]any {
	return map[string]any{"role": "assistant", "content": content}
}

func TestOpenAIProvider_HappyPath(t *testing.T) {
	const drill = `[{"es":"Yo __ español.","answer":"hablo","tense":"pres"}]`
	var got openai.ChatCompletionRequest
	p := serveOpenAI(t, http.StatusOK, completion(assistant(drill), "stop"), &got)

	resp, err := p.Generate(context.Background(), Request{
		System:    "You write Spanish conjugation drills.",
		Messages:  []Message{{Role: RoleUser, Content: "Generate 1 questions spread across all of the tenses"}},
		MaxTokens: 256,
	})
	require.NoError(t, err)

	assert.JSONEq(t, drill, string(resp.Content))
	assert.Equal(t, Usage{InputTokens: 40, OutputTokens: 25, TotalTokens: 65}, resp.Usage)
	assert.Equal(t, StopEnd, resp.StopReason)
	assert.Equal(t, "gpt-4.1-mini-2025-04-14", resp.Model)

	assert.Equal(t, "gpt-4.1-mini", got.Model)
	assert.Equal(t, 256, got.MaxCompletionTokens)
	assert.Nil(t, got.ResponseFormat, "free text has no response format")
}

func TestOpenAIProvider_SchemaRequestsStrictJSON(t *testing.T) {
	var got openai.ChatCompletionRequest
	p := serveOpenAI(t, http.StatusOK, completion(assistant(`{"n":1}`), "stop"), &got)

	schema := &Schema{
		Name: "openai_strict_probe",
		Definition: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{"n": map[string]any{"type": "integer"}},
			"required":             []string{"n"},
			"additionalProperties": false,
		},
	}
	_, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}, Schema: schema})
	require.NoError(t, err)

	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, got.ResponseFormat.Type)
	require.NotNil(t, got.ResponseFormat.JSONSchema)
	assert.Equal(t, "openai_strict_probe", got.ResponseFormat.JSONSchema.Name)
	assert.True(t, got.ResponseFormat.JSONSchema.Strict)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   any
		want   any
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   map[string]any{"error": map[string]any{"type": "tokens", "message": "Rate limit exceeded", "code": "rate_limit_exceeded"}},
			want:   new(*ErrRateLimit),
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   map[string]any{"error": map[string]any{"type": "server_error", "message": "Internal server error"}},
			want:   new(*ErrProviderUnavailable),
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   map[string]any{"model": "gpt-4.1-mini", "choices": []any{}},
			want:   new(*ErrInvalidResponse),
		},
		{
			name:   "content filter",
			status: http.StatusOK,
			body:   completion(assistant(""), "content_filter"),
			want:   new(*ErrNoContent),
		},
		{
			name:   "refusal",
			status: http.StatusOK,
			body:   completion(map[string]any{"role": "assistant", "content": "", "refusal": "I can't help with that."}, "stop"),
			want:   new(*ErrNoContent),
		},
		{
			name:   "blank content",
			status: http.StatusOK,
			body:   completion(assistant(" \n"), "stop"),
			want:   new(*ErrNoContent),
		},
		{
			name:   "length with nothing",
			status: http.StatusOK,
			body:   completion(assistant(""), "length"),
			want:   new(*ErrMaxTokensExceeded),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := serveOpenAI(t, tc.status, tc.body, nil)
			_, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			require.Error(t, err)
			assert.ErrorAs(t, err, tc.want)
		})
	}
}

func TestOpenAIProvider_TruncatedFreeTextIsKept(t *testing.T) {
	p := serveOpenAI(t, http.StatusOK, completion(assistant(`[{"es":"Ella __`), "length"), nil)

	resp, err := p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, StopMaxTokens, resp.StopReason)
	assert.Equal(t, `[{"es":"Ella __`, string(resp.Content))
}

func TestNewOpenAIProvider(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4.1-mini"})
	assert.Error(t, err, "api key required")

	cases := map[string]string{
		"5-mini":       "gpt-5-mini",
		"4.1-nano":     "gpt-4.1-nano",
		"gpt-4.1-mini": "gpt-4.1-mini",
		"o4-mini":      "o4-mini",
	}
	for in, want := range cases {
		p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: in, BaseURL: "https://openrouter.ai/api/v1"})
		require.NoError(t, err)
		assert.Equal(t, want, p.ModelID(), in)
	}
}

func TestOpenAIProvider_NonJSONRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("<html>slow down</html>"))
	}))
	t.Cleanup(srv.Close)

	p, err := newOpenAIProviderRaw(OpenAIConfig{APIKey: "k", Model: "gpt-4.1-mini", BaseURL: srv.URL + "/v1"}, nil)
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	var rl *ErrRateLimit
	assert.ErrorAs(t, err, &rl)
}
