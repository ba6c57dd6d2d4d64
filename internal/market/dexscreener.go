// Package market fetches prices and pair statistics from DexScreener and
// CoinGecko and turns them into candles, snapshots and scan results.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const SolanaChainID = "solana"

var ErrRateLimited = errors.New("rate limited (429)")

// --- DexScreener API response ---

type dexResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
	Pair          *Pair  `json:"pair"`
}

type Pair struct {
	ChainID       string       `json:"chainId"`
	DexID         string       `json:"dexId"`
	URL           string       `json:"url"`
	PairAddress   string       `json:"pairAddress"`
	BaseToken     Token        `json:"baseToken"`
	QuoteToken    Token        `json:"quoteToken"`
	PriceNative   string       `json:"priceNative"`
	PriceUsd      string       `json:"priceUsd"`
	Txns          Transactions `json:"txns"`
	Volume        Volume       `json:"volume"`
	PriceChange   PriceChange  `json:"priceChange"`
	Liquidity     Liquidity    `json:"liquidity"`
	Fdv           float64      `json:"fdv"`
	PairCreatedAt int64        `json:"pairCreatedAt"`
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Transactions struct {
	M5  BuysSells `json:"m5"`
	H1  BuysSells `json:"h1"`
	H6  BuysSells `json:"h6"`
	H24 BuysSells `json:"h24"`
}

type BuysSells struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

type Volume struct {
	H24 float64 `json:"h24"`
	H6  float64 `json:"h6"`
	H1  float64 `json:"h1"`
	M5  float64 `json:"m5"`
}

type PriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type Liquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

func (p Pair) CreatedAt() time.Time {
	return time.UnixMilli(p.PairCreatedAt).UTC()
}

func (p Pair) PriceNativeFloat() float64 { return parseFloat(p.PriceNative, 0) }
func (p Pair) PriceUSDFloat() float64    { return parseFloat(p.PriceUsd, 0) }

func parseFloat(val string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return def
	}
	return f
}

// DexScreener is a breaker-guarded client for the public DexScreener API.
type DexScreener struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewDexScreener(cfg Config) *DexScreener {
	return &DexScreener{
		baseURL: strings.TrimRight(cfg.DexScreenerURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      newBreaker("dexscreener"),
	}
}

// Search runs a pair search and keeps Solana pairs only.
func (d *DexScreener) Search(ctx context.Context, query string) ([]Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/search?q=%s", d.baseURL, url.QueryEscape(query))
	pairs, err := d.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	solana := pairs[:0]
	for _, p := range pairs {
		if p.ChainID == SolanaChainID {
			solana = append(solana, p)
		}
	}
	return solana, nil
}

// Pair fetches a single Solana pair by address.
func (d *DexScreener) Pair(ctx context.Context, pairAddress string) (*Pair, error) {
	u := fmt.Sprintf("%s/latest/dex/pairs/%s/%s", d.baseURL, SolanaChainID, pairAddress)
	pairs, err := d.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	for i := range pairs {
		if strings.EqualFold(pairs[i].PairAddress, pairAddress) {
			return &pairs[i], nil
		}
	}
	if len(pairs) > 0 {
		return &pairs[0], nil
	}
	return nil, fmt.Errorf("pair %s not found", pairAddress)
}

func (d *DexScreener) fetch(ctx context.Context, u string) ([]Pair, error) {
	out, err := d.cb.Execute(func() (interface{}, error) {
		return d.doFetch(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Pair), nil
}

func (d *DexScreener) doFetch(ctx context.Context, u string) ([]Pair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		log.Warn().Msg("⚠️ DexScreener rate limit hit, consider a longer poll interval")
		return nil, ErrRateLimited
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK HTTP status: %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
	if len(body) == 0 {
		log.Debug().Msg("ℹ️ DexScreener returned an empty body")
		return []Pair{}, nil
	}

	var parsed dexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		var direct []Pair
		if errDirect := json.Unmarshal(body, &direct); errDirect == nil {
			return direct, nil
		}
		return nil, fmt.Errorf("error decoding DexScreener JSON: %w. Body segment: %s", err, truncate(body, 200))
	}
	if parsed.Pairs == nil {
		if parsed.Pair != nil {
			return []Pair{*parsed.Pair}, nil
		}
		return []Pair{}, nil
	}
	return parsed.Pairs, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// newBreaker trips after three consecutive failures and lets one request
// through after thirty seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
}
