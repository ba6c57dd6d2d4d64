package signals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archon/internal/candle"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDataPlaceholder(t *testing.T) {
	c, path := newTestCache(t, &fakeStore{})
	srv := NewServer(c, path)

	rec := get(t, srv.Handler(), "/data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "BABY", body["token"])
	assert.Equal(t, NoDataMessage, body["message"])
	assert.Equal(t, 0.0, body["buys"])
	assert.Nil(t, body["whale_trade"])
	stats := body["trend_stats"].(map[string]any)
	assert.Equal(t, 0.0, stats["doji_candles"])
}

func TestDataSnapshot(t *testing.T) {
	c, path := newTestCache(t, &fakeStore{
		candles: []candle.Candle{{Pair: "BABY/USD", Open: 1, Close: 1.1, High: 1.2, Low: 0.9, Doji: candle.DojiNone}},
		whale:   &WhaleTrade{Classification: "🐳", Amount: 5e9},
	})
	require.NoError(t, c.RefreshPrice(context.Background()))
	require.NoError(t, c.RefreshTrades(context.Background()))
	srv := NewServer(c, path)

	rec := get(t, srv.Handler(), "/data")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "BABY", snap.Token)
	assert.Equal(t, 1.1, snap.Price)
	assert.Empty(t, snap.Message)
	require.NotNil(t, snap.WhaleTrade)
	assert.Equal(t, 5.0, snap.WhaleTrade.AmountSOL)
	require.Len(t, snap.CandleTrend, 1)
}

func TestHealthAndMetrics(t *testing.T) {
	c, path := newTestCache(t, &fakeStore{})
	h := NewServer(c, path).Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archon_")
}

func TestRequestIDIsEchoed(t *testing.T) {
	c, path := newTestCache(t, &fakeStore{})
	h := NewServer(c, path).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
}

func TestDataRejectsPost(t *testing.T) {
	c, path := newTestCache(t, &fakeStore{})
	h := NewServer(c, path).Handler()
	req := httptest.NewRequest(http.MethodPost, "/data", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
