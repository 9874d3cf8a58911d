package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"confess.share/config"
	"confess.share/internal/cache"
	"confess.share/internal/logger"
	"confess.share/internal/models"
	"confess.share/internal/service"
	"confess.share/internal/store"
)

const testBaseURL = "https://confess.example"

type testServer struct {
	router *chi.Mux
	store  *store.MemoryStore
	cache  cache.Cache
}

func newTestServer(t *testing.T, mutate func(*config.Config, *Dependencies)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Server.BaseURL = testBaseURL
	cfg.Secrets.BcryptCost = bcrypt.MinCost

	st := store.NewMemoryStore()
	mc := cache.NewMemoryCache(time.Hour)
	t.Cleanup(func() { _ = mc.Close() })

	log := logger.Discard()
	deps := Dependencies{Store: st, Cache: mc}

	if mutate != nil {
		mutate(cfg, &deps)
	}

	deps.Confessions = service.NewConfessionService(st.Confessions(), cfg.Secrets.MaxMessageLength, log)
	deps.Secrets = service.NewSecretService(st.Secrets(), deps.Cache, service.SecretConfig{
		BaseURL:          cfg.Server.BaseURL,
		TTL:              cfg.Secrets.TTL,
		BcryptCost:       cfg.Secrets.BcryptCost,
		MaxMessageLength: cfg.Secrets.MaxMessageLength,
	}, log)

	return &testServer{router: SetupRouter(deps, cfg, log), store: st, cache: deps.Cache}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestConfessionScenario(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/confessions", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.Confession](t, rec)
	assert.True(t, models.ValidID(created.ID))
	assert.Equal(t, "hello", created.Message)

	rec = s.do(t, http.MethodGet, "/confessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0]["id"])
	assert.Equal(t, "hello", list[0]["message"])
	assert.Contains(t, list[0], "createdAt")

	rec = s.do(t, http.MethodPut, "/confessions/"+created.ID, map[string]string{"message": "world"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "world", decodeBody[models.Confession](t, rec).Message)

	rec = s.do(t, http.MethodDelete, "/confessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, "/confessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeBody[ErrorResponse](t, rec).Code)
}

func TestListConfessions_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/confessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestConfessionValidation(t *testing.T) {
	s := newTestServer(t, nil)
	valid := models.NewID()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty message", http.MethodPost, "/confessions", map[string]string{"message": ""}, http.StatusBadRequest},
		{"blank message", http.MethodPost, "/confessions", map[string]string{"message": "  \n"}, http.StatusBadRequest},
		{"missing message", http.MethodPost, "/confessions", map[string]string{}, http.StatusBadRequest},
		{"update invalid id", http.MethodPut, "/confessions/nope", map[string]string{"message": "x"}, http.StatusBadRequest},
		{"update empty message", http.MethodPut, "/confessions/" + valid, map[string]string{"message": ""}, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/confessions/" + valid, map[string]string{"message": "x"}, http.StatusNotFound},
		{"delete invalid id", http.MethodDelete, "/confessions/nope", nil, http.StatusBadRequest},
		{"delete unknown", http.MethodDelete, "/confessions/" + valid, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestConfessionIDUnderscoresStripped(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/confessions", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody[models.Confession](t, rec).ID

	rec = s.do(t, http.MethodPut, "/confessions/_"+id[:12]+"_"+id[12:], map[string]string{"message": "x"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func secretID(t *testing.T, link string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(link, testBaseURL+"/secret/"), link)
	return strings.TrimPrefix(link, testBaseURL+"/secret/")
}

func TestSecretScenario(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/secrets", map[string]string{"message": "secret", "password": "abc"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[CreateSecretResponse](t, rec)
	id := secretID(t, created.ShareableLink)
	assert.True(t, models.ValidID(id))
	assert.NotEmpty(t, created.Message)

	rec = s.do(t, http.MethodGet, "/secrets/"+id, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthorized, decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/secrets/"+id+"?password=xyz", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, CodeForbidden, decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/secrets/"+id+"?password=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret", decodeBody[SecretResponse](t, rec).Message)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = s.do(t, http.MethodGet, "/secrets/"+id+"?password=abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecretWithoutPassword_ReadOnce(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/secrets", map[string]string{"message": "open"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := secretID(t, decodeBody[CreateSecretResponse](t, rec).ShareableLink)

	// A password supplied for an unprotected message is ignored.
	rec = s.do(t, http.MethodGet, "/secrets/"+id+"?password=whatever", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "open", decodeBody[SecretResponse](t, rec).Message)

	rec = s.do(t, http.MethodGet, "/secrets/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := s.store.Secrets().Get(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.cache.Get(context.Background(), id)
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestSecretValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/secrets/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidationError, decodeBody[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/secrets/"+models.NewID(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/secrets", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/secrets", map[string]string{
		"message":  "hi",
		"password": strings.Repeat("p", 73),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password is too long", decodeBody[ErrorResponse](t, rec).Error)
}

func TestCreateSecret_MissingBaseURL(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config, _ *Dependencies) {
		cfg.Server.BaseURL = ""
	})

	rec := s.do(t, http.MethodPost, "/secrets", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, CodeInternalError, body.Code)
	assert.Equal(t, "Server configuration error", body.Error)
}

type unreachableCache struct {
	cache.Cache
}

var errUnreachable = errors.New("dial tcp 10.0.0.7:6379: connect: connection refused")

func (unreachableCache) Set(ctx context.Context, id string, e *models.CachedSecret, ttl time.Duration) error {
	return errUnreachable
}

func (unreachableCache) Ping(ctx context.Context) error { return errUnreachable }

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	s := newTestServer(t, func(_ *config.Config, deps *Dependencies) {
		deps.Cache = unreachableCache{Cache: deps.Cache}
	})

	rec := s.do(t, http.MethodPost, "/secrets", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
	assert.Equal(t, "Internal server error", decodeBody[ErrorResponse](t, rec).Error)
}

func TestReady(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[ReadyResponse](t, rec).Status)

	s = newTestServer(t, func(_ *config.Config, deps *Dependencies) {
		deps.Cache = unreachableCache{Cache: deps.Cache}
	})
	rec = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeBody[ReadyResponse](t, rec)
	assert.Equal(t, "unavailable", resp.Checks["cache"])
	assert.Equal(t, "ok", resp.Checks["store"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestBodies(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/confessions", strings.NewReader(`{"message":"x"}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("content type with charset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/confessions", strings.NewReader(`{"message":"x"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/secrets", strings.NewReader(`{"message":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		huge := `{"message":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/secrets", strings.NewReader(huge))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/secrets/bad", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", decodeBody[ErrorResponse](t, rec).RequestID)

	rec = s.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestSecretPage(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/secret/"+models.NewID(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/secrets/")

	rec = s.do(t, http.MethodGet, "/secret/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/static/style.css", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(t, http.MethodGet, "/static/missing.css", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/", nil)
	assert.Contains(t, rec.Body.String(), `href="/static/style.css"`)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/confessions/"+models.NewID(), nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("http://localhost:4200")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4200", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	rec = preflight("https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRevealRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config, _ *Dependencies) {
		cfg.RateLimit.RevealPerMin = 2
	})

	path := "/secrets/" + models.NewID()
	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	rec := s.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, CodeRateLimited, decodeBody[ErrorResponse](t, rec).Code)

	// Other routes use the general limiter.
	rec = s.do(t, http.MethodGet, "/confessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config, _ *Dependencies) {
		cfg.RateLimit.Enabled = false
		cfg.RateLimit.RevealPerMin = 1
	})

	path := "/secrets/" + models.NewID()
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil).Code)
	}
}

func TestRecovery(t *testing.T) {
	h := RequestID(Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, CodeInternalError, body.Code)
	assert.NotEmpty(t, body.RequestID)
	assert.NotContains(t, rec.Body.String(), "boom")
}
