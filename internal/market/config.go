package market

import "time"

type Config struct {
	DexScreenerURL      string          `yaml:"dexscreener_url"`
	CoinGeckoURL        string          `yaml:"coingecko_url"`
	Timeout             time.Duration   `yaml:"timeout"`
	SOLPriceTTL         time.Duration   `yaml:"sol_price_ttl"`
	PriceInterval       time.Duration   `yaml:"price_interval"`
	WhaleAlertThreshold float64         `yaml:"whale_alert_threshold"`
	DojiJournal         string          `yaml:"doji_journal"`
	DojiRetention       time.Duration   `yaml:"doji_retention"`
	Collector           CollectorConfig `yaml:"collector"`
	Scanner             ScannerConfig   `yaml:"scanner"`
}

type CollectorConfig struct {
	Interval time.Duration `yaml:"interval"`
	Query    string        `yaml:"query"`
}

type ScannerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Query           string        `yaml:"query"`
	Top             int           `yaml:"top"`
	MinLiquidityUSD float64       `yaml:"min_liquidity_usd"`
	MinVolumeM5USD  float64       `yaml:"min_volume_m5_usd"`
	MinPairAge      time.Duration `yaml:"min_pair_age"`
	QuoteSymbols    []string      `yaml:"quote_symbols"`
	RankBy          string        `yaml:"rank_by"`
}

const (
	RankByMomentum = "momentum"
	RankByScore    = "score"
)

func DefaultConfig() Config {
	return Config{
		DexScreenerURL:      "https://api.dexscreener.com",
		CoinGeckoURL:        "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd",
		Timeout:             15 * time.Second,
		SOLPriceTTL:         10 * time.Minute,
		PriceInterval:       4 * time.Second,
		WhaleAlertThreshold: 0.005,
		DojiJournal:         "doji.json",
		DojiRetention:       24 * time.Hour,
		Collector: CollectorConfig{
			Interval: 30 * time.Second,
			Query:    "SOL -meme -shitcoin",
		},
		Scanner: ScannerConfig{
			Interval:        30 * time.Second,
			Query:           "SOL",
			Top:             20,
			MinLiquidityUSD: 1000,
			MinVolumeM5USD:  100,
			QuoteSymbols:    []string{"SOL", "USDC", "USDT"},
			RankBy:          RankByMomentum,
		},
	}
}
