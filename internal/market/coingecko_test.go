package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSOLPrice(t *testing.T, ttl time.Duration, h http.HandlerFunc) *SOLPrice {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.CoinGeckoURL = srv.URL
	cfg.SOLPriceTTL = ttl
	cfg.Timeout = 2 * time.Second
	return NewSOLPrice(cfg)
}

func TestSOLPriceCached(t *testing.T) {
	var calls int32
	s := newTestSOLPrice(t, time.Minute, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"solana":{"usd":142.5}}`))
	})

	for i := 0; i < 3; i++ {
		v, err := s.USD(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 142.5, v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSOLPriceServesLastValueOnFailure(t *testing.T) {
	var fail atomic.Bool
	s := newTestSOLPrice(t, 10*time.Millisecond, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"solana":{"usd":150}}`))
	})

	v, err := s.USD(context.Background())
	require.NoError(t, err)
	require.Equal(t, 150.0, v)

	fail.Store(true)
	time.Sleep(30 * time.Millisecond)

	v, err = s.USD(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150.0, v)
}

func TestSOLPriceNoValue(t *testing.T) {
	s := newTestSOLPrice(t, time.Minute, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"solana":{"usd":0}}`))
	})
	_, err := s.USD(context.Background())
	assert.ErrorIs(t, err, ErrNoSOLPrice)
}
