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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leafsii/appconfig/pkg/appconfig"
	"github.com/leafsii/appconfig/pkg/kv"
	"github.com/leafsii/appconfig/pkg/kv/memory"
)

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	m.Called(method, path, status)
}

type testServer struct {
	router  http.Handler
	cfg     *appconfig.Config
	clock   *appconfig.ManualClock
	remote  *memory.Store
	env     *appconfig.MapEnvironment
	metrics *MockMetrics
}

func newTestServer(t *testing.T, opts ...appconfig.Option) *testServer {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	sugar := logger.Sugar()

	clock := appconfig.NewManualClock(1_700_000_000)
	remote := memory.New(0)
	t.Cleanup(func() { remote.Close() })
	env := appconfig.NewMapEnvironment(map[string]string{"HOME": "/home/app"})

	all := append([]appconfig.Option{
		appconfig.WithClock(clock),
		appconfig.WithRemote(remote),
		appconfig.WithEnvironment(env),
		appconfig.WithLogger(sugar),
	}, opts...)
	cfg := appconfig.New(all...)

	metrics := &MockMetrics{}
	metrics.On("RecordHTTPRequest", mock.Anything, mock.Anything, mock.Anything).Return()

	handler := NewHandler(cfg, sugar)
	router := handler.Routes(NewMiddleware(sugar, metrics), nil, 0, nil)

	return &testServer{router: router, cfg: cfg, clock: clock, remote: remote, env: env, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func TestRegisterAndGetItem(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/v1/items/db_url", RegisterRequest{Value: "postgres://localhost/app", Constant: true})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	reg := decodeBody[map[string]any](t, rr)
	assert.Equal(t, "db_url", reg["name"])
	assert.Equal(t, "local", reg["backing_store"])
	assert.Equal(t, true, reg["by_reference"])
	assert.Equal(t, true, reg["constant"])

	rr = s.do(t, http.MethodGet, "/v1/items/db_url", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody[ValueResponse](t, rr)
	assert.Equal(t, "postgres://localhost/app", got.Value)

	// Constants cannot be overwritten.
	rr = s.do(t, http.MethodPut, "/v1/items/db_url", ValueRequest{Value: "other"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	errResp := decodeBody[ErrorResponse](t, rr)
	assert.Equal(t, "conflict", errResp.Code)
	assert.Contains(t, errResp.Message, "constant")
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/items/a", RegisterRequest{Value: "1"}).Code)

	rr := s.do(t, http.MethodPost, "/v1/items/a", RegisterRequest{Value: "2"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, http.MethodPost, "/v1/items/a", RegisterRequest{Value: "2", Overwrite: true})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"bad backing store", RegisterRequest{Value: "x", BackingStore: "disk"}, http.StatusBadRequest, "value"},
		{"remote non-string", RegisterRequest{Value: 42, BackingStore: "remote"}, http.StatusUnprocessableEntity, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := s.do(t, http.MethodPost, "/v1/items/v", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.Equal(t, tt.code, decodeBody[ErrorResponse](t, rr).Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/items/v", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_body", decodeBody[ErrorResponse](t, rr).Code)
}

func TestGetItemDefault(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/v1/items/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodGet, "/v1/items/missing?default=fallback", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "fallback", decodeBody[ValueResponse](t, rr).Value)
}

func TestGetItemFalsyValues(t *testing.T) {
	s := newTestServer(t)

	for name, value := range map[string]any{"zero": 0, "off": false, "empty": ""} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/items/"+name, RegisterRequest{Value: value}).Code)

		rr := s.do(t, http.MethodGet, "/v1/items/"+name, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, name)

		rr = s.do(t, http.MethodGet, "/v1/items/"+name+"?default=d", nil)
		require.Equal(t, http.StatusOK, rr.Code, name)
		assert.Equal(t, "d", decodeBody[ValueResponse](t, rr).Value)

		rr = s.do(t, http.MethodGet, "/v1/items/"+name+"/exists", nil)
		assert.True(t, decodeBody[ExistsResponse](t, rr).Exists, name)
	}

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/items/workers", RegisterRequest{Value: 4}).Code)
	rr := s.do(t, http.MethodGet, "/v1/items/workers", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(4), decodeBody[ValueResponse](t, rr).Value)
}

func TestRemoteItemLifecycle(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	rr := s.do(t, http.MethodPost, "/v1/items/token", RegisterRequest{Value: "abc", BackingStore: "remote", Timeout: 30})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reg := decodeBody[map[string]any](t, rr)
	assert.Equal(t, "remote", reg["backing_store"])
	assert.Equal(t, false, reg["by_reference"])
	assert.EqualValues(t, 30, reg["timeout"])

	stored, err := s.remote.GetString(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", stored)

	rr = s.do(t, http.MethodPut, "/v1/items/token", ValueRequest{Value: "def"})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, http.MethodGet, "/v1/items/token", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "def", decodeBody[ValueResponse](t, rr).Value)

	rr = s.do(t, http.MethodGet, "/v1/items/token/exists", nil)
	assert.True(t, decodeBody[ExistsResponse](t, rr).Exists)

	rr = s.do(t, http.MethodDelete, "/v1/items/token", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(t, http.MethodGet, "/v1/items/token/registration", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Registered again, then removed from the remote store directly.
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/items/token", RegisterRequest{Value: "abc", BackingStore: "remote"}).Code)
	_, err = s.remote.Del(ctx, "token")
	require.NoError(t, err)

	rr = s.do(t, http.MethodDelete, "/v1/items/token", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rr).Code)
}

func TestItemExpires(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/v1/items/session", RegisterRequest{Value: "x", Timeout: 5}).Code)

	rr := s.do(t, http.MethodGet, "/v1/items/session/exists", nil)
	assert.True(t, decodeBody[ExistsResponse](t, rr).Exists)

	s.clock.Advance(5 * time.Second)

	rr = s.do(t, http.MethodGet, "/v1/items/session/exists", nil)
	assert.False(t, decodeBody[ExistsResponse](t, rr).Exists)

	rr = s.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decodeBody[appconfig.Stats](t, rr)
	assert.Zero(t, stats.LocalItems)
	assert.Zero(t, stats.Registered)
	assert.True(t, stats.Remote)
}

func TestEnvEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/v1/env/HOME", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "/home/app", decodeBody[ValueResponse](t, rr).Value)

	rr = s.do(t, http.MethodGet, "/v1/env/MODE", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodGet, "/v1/env/MODE?default=dev", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dev", decodeBody[ValueResponse](t, rr).Value)

	rr = s.do(t, http.MethodPut, "/v1/env/MODE", ValueRequest{Value: "prod"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	v, ok := s.env.Lookup("MODE")
	assert.True(t, ok)
	assert.Equal(t, "prod", v)

	rr = s.do(t, http.MethodPut, "/v1/env/MODE", ValueRequest{Value: ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPut, "/v1/env/MODE", ValueRequest{Value: 3})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodGet, "/v1/env/MODE/exists", nil)
	assert.True(t, decodeBody[ExistsResponse](t, rr).Exists)

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/v1/env/MODE", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/v1/env/MODE", nil).Code)
}

type brokenStore struct {
	kv.Store
	err error
}

func (b brokenStore) SetString(context.Context, string, string, ...time.Duration) error {
	return b.err
}

func (b brokenStore) Ping(context.Context) error {
	return b.err
}

func TestRemoteFailures(t *testing.T) {
	remote := memory.New(0)
	t.Cleanup(func() { remote.Close() })
	s := newTestServer(t, appconfig.WithRemote(brokenStore{Store: remote, err: errors.New("connection refused")}))

	rr := s.do(t, http.MethodPost, "/v1/items/r", RegisterRequest{Value: "v", BackingStore: "remote"})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "unknown", decodeBody[ErrorResponse](t, rr).Code)

	rr = s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	health := decodeBody[HealthResponse](t, rr)
	assert.Equal(t, "NOT_READY", health.Status)
	assert.Equal(t, "configured", health.Remote)
}

func TestRemoteNotConfigured(t *testing.T) {
	logger := zap.NewNop().Sugar()
	cfg := appconfig.New(appconfig.WithEnvironment(appconfig.NewMapEnvironment(nil)))
	router := NewHandler(cfg, logger).Routes(NewMiddleware(logger, nil), nil, 0, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/items/r", strings.NewReader(`{"value":"v","backing_store":"redis"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "config", decodeBody[ErrorResponse](t, rr).Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "disabled", decodeBody[HealthResponse](t, rr).Remote)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", decodeBody[HealthResponse](t, rr).Status)

	rr = s.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "READY", decodeBody[HealthResponse](t, rr).Status)

	rr = s.do(t, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewareHeadersAndMetrics(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/items/a/exists", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = s.do(t, http.MethodGet, "/v1/items/a/exists", nil)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	s.metrics.AssertCalled(t, "RecordHTTPRequest", http.MethodGet, "/v1/items/{name}/exists", http.StatusOK)
}

func TestRateLimit(t *testing.T) {
	logger := zap.NewNop().Sugar()
	m := NewMiddleware(logger, nil)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := m.RateLimit(6)(next)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestRecovererWritesJSON(t *testing.T) {
	logger := zap.NewNop().Sugar()
	m := NewMiddleware(logger, nil)
	h := m.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal", decodeBody[ErrorResponse](t, rr).Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(appconfig.KindUsage))
	assert.Equal(t, http.StatusBadRequest, statusFor(appconfig.KindValue))
	assert.Equal(t, http.StatusConflict, statusFor(appconfig.KindConflict))
	assert.Equal(t, http.StatusNotFound, statusFor(appconfig.KindNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(appconfig.KindType))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(appconfig.KindConfig))
	assert.Equal(t, http.StatusBadGateway, statusFor(appconfig.KindUnknown))
}
