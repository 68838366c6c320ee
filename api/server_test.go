package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hedgegrid/config"
	"hedgegrid/store"
	"hedgegrid/trader"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Exchange: config.ExchangeConfig{APIKey: "abcdefghijklmnop", APISecret: "topsecret"},
		Strategy: config.StrategyConfig{
			Mode:           config.ModeHedge,
			Symbol:         "BTCUSDT",
			PositionRatio:  decimal.RequireFromString("0.1"),
			Leverage:       5,
			MaxPositions:   2,
			MaxDailyLoss:   decimal.RequireFromString("100"),
			MaxDailyTrades: 10,
			RiskAccounting: config.RiskLossOnly,
		},
		APIPort: 8080,
	}

	st, err := store.New(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine := trader.NewEngine(&cfg.Strategy, nil, st.Trade())
	return NewServer(engine, st.Trade(), cfg)
}

func TestHealth(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Contains(t, status, "state")
	assert.Contains(t, status, "risk")
}

func TestConfigMasksSecrets(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.NotContains(t, body, "topsecret")
	assert.NotContains(t, body, "abcdefghijklmnop")
	assert.Contains(t, body, "abcd****mnop")
}

func TestTradesLimitValidation(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/trades?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/trades?limit=10", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestControlEndpointsEnqueue(t *testing.T) {
	s := testServer(t)

	for _, path := range []string{"/api/pause", "/api/resume", "/api/reset-daily", "/api/manual/long", "/api/manual/short", "/api/close/all"} {
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "abcd****wxyz", maskSecret("abcd123456wxyz"))
}
