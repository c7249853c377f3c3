package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/conjugar/internal/auth"
	"github.com/abhisek/conjugar/internal/blob"
	"github.com/abhisek/conjugar/internal/generation"
	"github.com/abhisek/conjugar/internal/llm"
	"github.com/abhisek/conjugar/internal/metrics"
	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

const twoQuestions = `[
  {"es": "Yo __ español.", "en": "I speak Spanish.", "fr": "Je parle espagnol.", "answer": "hablo", "tense": "pres", "inf": "hablar"},
  {"es": "Ayer ella __ pan.", "en": "Yesterday she bought bread.", "fr": "Hier elle a acheté du pain.", "answer": "compró", "tense": "pret", "inf": "comprar"}
]`

var (
	q1 = questionset.Question{SpanishText: "Yo __ español.", EnglishTranslation: "I speak Spanish.", Answer: "hablo", TenseID: tense.Present}
	q2 = questionset.Question{SpanishText: "Tú __ mucho.", EnglishTranslation: "You eat a lot.", Answer: "comes", TenseID: tense.Present}
)

type testEnv struct {
	srv   *Server
	repo  *questionset.Repository
	store *blob.Memory
	mock  *llm.MockProvider
}

func newTestEnv(t *testing.T, opts Options, responses ...llm.MockResponse) *testEnv {
	t.Helper()
	store := blob.NewMemory()
	repo := questionset.NewRepository(store, questionset.Options{CAS: true})
	mock := llm.NewMockProvider(responses...)
	gen := generation.New(mock, repo, generation.DefaultConfig())
	srv := New(opts, repo, gen, auth.NewSharedPassword(opts.APIPassword), metrics.New(), nil)
	return &testEnv{srv: srv, repo: repo, store: store, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, target string, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestGetQuestion_BaseQuestions(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/question", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]questionset.Question](t, rec)
	assert.Equal(t, questionset.BaseQuestions(), got)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGetQuestion_Generate(t *testing.T) {
	env := newTestEnv(t, Options{}, llm.TextResponse(twoQuestions))

	v := url.Values{"generate": {"true"}, "count": {"2"}, "tenses": {"pres,pret"}, "username": {"ana"}, "title": {"Repaso"}}
	rec := env.do(t, http.MethodGet, "/api/question?"+v.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[generateResponse](t, rec)
	assert.Equal(t, generation.OutcomeOK, resp.Outcome)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Repaso", resp.Title)
	assert.Equal(t, "ana", resp.OwnerUsername)
	require.Len(t, resp.Questions, 2)
	assert.Empty(t, resp.Error)

	prompt := env.mock.Calls[0].Messages[0].Content
	assert.True(t, strings.HasSuffix(prompt, "Generate a total of 2 questions spread across the pres,pret tenses"))

	set, err := env.repo.GetSet(context.Background(), resp.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, resp.Questions, set.Questions)
}

func TestGetQuestion_GenerateFailureIsNotAnError(t *testing.T) {
	env := newTestEnv(t, Options{}, llm.TextResponse(""))

	rec := env.do(t, http.MethodGet, "/api/question?generate=true&username=ana", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[generateResponse](t, rec)
	assert.Equal(t, generation.OutcomeNoOutput, resp.Outcome)
	assert.Empty(t, resp.ID)
	assert.Equal(t, "No se pudieron generar preguntas", resp.Title)
	assert.NotNil(t, resp.Questions)
	assert.Empty(t, resp.Questions)
	assert.NotEmpty(t, resp.Error)
	assert.Contains(t, rec.Body.String(), `"questions":[]`)

	objs, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, objs, "a failed generation must not write to the store")

	prompt := env.mock.Calls[0].Messages[0].Content
	assert.True(t, strings.HasSuffix(prompt, "Generate 10 questions spread across all of the tenses"))
}

func TestGetQuestion_GenerateValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"missing username", "generate=true&count=5", "username_required"},
		{"blank username", "generate=true&username=%20%20", "username_required"},
		{"count not a number", "generate=true&username=ana&count=many", "invalid_count"},
		{"count zero", "generate=true&username=ana&count=0", "invalid_count"},
		{"count too large", "generate=true&username=ana&count=51", "invalid_count"},
		{"unknown tense", "generate=true&username=ana&tenses=pres,aorist", "invalid_tenses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			rec := env.do(t, http.MethodGet, "/api/question?"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
			assert.Zero(t, env.mock.CallCount())
		})
	}
}

func TestGetQuestion_ListAndFetch(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	a, err := env.repo.CreateSet(ctx, "Practice 1", []questionset.Question{q1, q2}, "alice")
	require.NoError(t, err)
	_, err = env.repo.CreateSet(ctx, "Bob's", []questionset.Question{q1}, "bob")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/question?list=true&username=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse](t, rec)
	require.Len(t, list.Sets, 1)
	assert.Equal(t, a.ID, list.Sets[0].ID)
	assert.Equal(t, "Practice 1", list.Sets[0].Title)

	rec = env.do(t, http.MethodGet, "/api/question?list=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listResponse](t, rec).Sets, 2)

	rec = env.do(t, http.MethodGet, "/api/question?list=true&username=nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sets":[]`)

	rec = env.do(t, http.MethodGet, "/api/question?id="+a.ID+"&username=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []questionset.Question{q1, q2}, decode[[]questionset.Question](t, rec))

	rec = env.do(t, http.MethodGet, "/api/question?id="+a.ID, "")
	require.Equal(t, http.StatusOK, rec.Code, "no username means no filter")

	rec = env.do(t, http.MethodGet, "/api/question?id="+a.ID+"&username=bob", "")
	require.Equal(t, http.StatusNotFound, rec.Code, "another owner sees not-found")
	assert.Equal(t, "not_found", decode[errorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/api/question?id=nonexistent-id", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/question?id=../../etc/passwd", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteQuestion(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	set, err := env.repo.CreateSet(ctx, "Practice 1", []questionset.Question{q1}, "alice")
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/api/question?id="+set.ID, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_parameters", decode[errorResponse](t, rec).Code)

	rec = env.do(t, http.MethodDelete, "/api/question?username=alice", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/question?id="+set.ID+"&username=bob", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	_, err = env.repo.GetSet(ctx, set.ID, "alice")
	require.NoError(t, err, "a denied delete leaves the set intact")

	rec = env.do(t, http.MethodDelete, "/api/question?id="+set.ID+"&username=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, set.ID, decode[deleteResponse](t, rec).Deleted)

	_, err = env.repo.GetSet(ctx, set.ID, "alice")
	assert.ErrorIs(t, err, questionset.ErrNotFound)

	rec = env.do(t, http.MethodDelete, "/api/question?id="+set.ID+"&username=alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIPassword(t *testing.T) {
	env := newTestEnv(t, Options{APIPassword: "hunter2"})

	rec := env.do(t, http.MethodGet, "/api/question", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/question", "", auth.HeaderPassword, "hunter2")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/tense", "")
	require.Equal(t, http.StatusOK, rec.Code, "reference data stays public")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/login", `{"username": " ana ", "password": "secreto"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana", decode[auth.Identity](t, rec).Username)

	rec = env.do(t, http.MethodPost, "/api/login", `{"username": "ana", "password": "nope"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decode[errorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/login", `{"password": "secreto"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[errorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/login", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decode[errorResponse](t, rec).Code)
}

func TestTenses(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/tense", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 13)
	assert.Equal(t, "pres", got[0]["id"])
	assert.Contains(t, got[0], "endings")
	assert.NotContains(t, got[0], "english")
}

type pingStore struct {
	SetStore
	err error
}

func (p pingStore) Ping(context.Context) error { return p.err }

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[readinessResponse](t, rec).Status)

	failing := New(Options{}, pingStore{SetStore: env.repo, err: errors.New("bucket gone")}, nil, auth.NewSharedPassword(""), nil, nil)
	rec = httptest.NewRecorder()
	failing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[readinessResponse](t, rec)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "failed", resp.Checks["store"].Status)
}

func TestMetricsAndUnknownRoutes(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodGet, "/api/question", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `conjugar_http_requests_total{method="GET",route="/api/question",status="200"} 1`)

	rec = env.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPut, "/api/question", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Options{AllowedOrigins: []string{"https://drill.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/question", nil)
	req.Header.Set("Origin", "https://drill.example")
	req.Header.Set("Access-Control-Request-Method", "DELETE")
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "https://drill.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "TRUE"} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"", "false", "0", "no", "Off"} {
		assert.False(t, truthy(v), v)
	}
}
