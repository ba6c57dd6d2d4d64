package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const solUSDKey = "sol_usd"

var ErrNoSOLPrice = errors.New("no SOL/USD price available")

// SOLPrice serves SOL/USD from CoinGecko, cached for the configured TTL.
// When a refresh fails the last good value is returned.
type SOLPrice struct {
	url   string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker
	cache *cache.Cache

	mu      sync.Mutex
	last    float64
	fetched time.Time
}

func NewSOLPrice(cfg Config) *SOLPrice {
	ttl := cfg.SOLPriceTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SOLPrice{
		url:   cfg.CoinGeckoURL,
		http:  &http.Client{Timeout: cfg.Timeout},
		cb:    newBreaker("coingecko"),
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *SOLPrice) USD(ctx context.Context) (float64, error) {
	if v, ok := s.cache.Get(solUSDKey); ok {
		return v.(float64), nil
	}

	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err == nil {
		price := out.(float64)
		s.cache.SetDefault(solUSDKey, price)
		s.mu.Lock()
		s.last, s.fetched = price, time.Now()
		s.mu.Unlock()
		log.Info().Float64("sol_usd", price).Msg("💲 SOL/USD refreshed")
		return price, nil
	}

	s.mu.Lock()
	last, fetched := s.last, s.fetched
	s.mu.Unlock()
	if last > 0 {
		log.Warn().Err(err).Float64("sol_usd", last).Time("fetched", fetched).Msg("⚠️ CoinGecko failed, using cached SOL/USD")
		return last, nil
	}
	return 0, fmt.Errorf("%w: %v", ErrNoSOLPrice, err)
}

func (s *SOLPrice) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("CoinGecko request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("CoinGecko status %d", resp.StatusCode)
	}

	var body struct {
		Solana struct {
			USD float64 `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("error decoding CoinGecko JSON: %w", err)
	}
	if body.Solana.USD <= 0 {
		return 0, errors.New("CoinGecko returned a non-positive SOL price")
	}
	return body.Solana.USD, nil
}
