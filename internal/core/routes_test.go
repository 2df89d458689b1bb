package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floodwatch/internal/config"
	"floodwatch/internal/types"
)

type mockSweeper struct {
	result types.SweepResult
	err    error
	runs   int
}

func (m *mockSweeper) Run(context.Context) (types.SweepResult, error) {
	m.runs++
	return m.result, m.err
}

func newTestServer(t *testing.T, sweeper SweepRunner) *Server {
	t.Helper()
	cfg := &config.Config{
		Environment: "local",
		Server: config.ServerConfig{
			Port:        "8080",
			AdminAPIKey: config.SecretString("test-admin-key"),
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := NewServer(cfg, sweeper, logger)
	require.NoError(t, err)
	srv.MountRoutes()
	return srv
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}

	_, err := NewServer(nil, &mockSweeper{}, logger)
	assert.Error(t, err)

	_, err = NewServer(cfg, nil, logger)
	assert.Error(t, err)

	_, err = NewServer(cfg, &mockSweeper{}, nil)
	assert.Error(t, err)
}

func TestTriggerSweep_RequiresAdminKey(t *testing.T) {
	sweeper := &mockSweeper{}
	srv := newTestServer(t, sweeper)

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/sweep", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, sweeper.runs)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/alerts/sweep", nil)
		req.Header.Set("X-Admin-Key", "wrong")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, sweeper.runs)

		var body APIErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, string(types.ErrCodeAuthTokenInvalid), body.Error.Code)
	})
}

func TestTriggerSweep_ReturnsResult(t *testing.T) {
	sweeper := &mockSweeper{result: types.SweepResult{UsersChecked: 5, AlertsSent: 2, Errors: 1}}
	srv := newTestServer(t, sweeper)

	req := httptest.NewRequest(http.MethodPost, "/v1/alerts/sweep", nil)
	req.Header.Set("X-Admin-Key", "test-admin-key")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sweeper.runs)

	var body struct {
		Data types.SweepResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, sweeper.result, body.Data)
}

func TestTriggerSweep_SweepFailure(t *testing.T) {
	sweeper := &mockSweeper{err: types.NewAppError(types.ErrCodeInternalDB, "user listing failed", errors.New("conn refused"))}
	srv := newTestServer(t, sweeper)

	req := httptest.NewRequest(http.MethodPost, "/v1/alerts/sweep", nil)
	req.Header.Set("X-Admin-Key", "test-admin-key")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.ErrCodeInternalDB), body.Error.Code)
	assert.Equal(t, "user listing failed", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestHealthRouteIsPublic(t *testing.T) {
	srv := newTestServer(t, &mockSweeper{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, &mockSweeper{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-Id"))
}
